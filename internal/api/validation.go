package api

import (
	"fmt"

	"github.com/creatorpulse/creatorpulse/internal/models"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateAccount validates tracked account data before storing it.
func ValidateAccount(account *models.TrackedAccount) error {
	if account.OrganizationID == "" {
		return ValidationError{Field: "organization_id", Message: "Organization ID is required"}
	}

	if account.ProjectID == "" {
		return ValidationError{Field: "project_id", Message: "Project ID is required"}
	}

	if account.Platform == "" {
		return ValidationError{Field: "platform", Message: "Platform is required"}
	}

	if !account.Platform.IsValid() {
		return ValidationError{Field: "platform", Message: "Invalid platform (must be instagram, tiktok, youtube, or twitter)"}
	}

	if account.Username == "" {
		return ValidationError{Field: "username", Message: "Username is required"}
	}

	switch account.CreatorType {
	case models.CreatorTypeAutomatic, models.CreatorTypeManual, models.CreatorTypeStatic:
	default:
		return ValidationError{Field: "creator_type", Message: "Invalid creator type (must be automatic, manual, or static)"}
	}

	if account.MaxVideos < 0 {
		return ValidationError{Field: "max_videos", Message: "Max videos cannot be negative"}
	}

	// Validate fetch interval (15 minutes to 1 week)
	if account.FetchIntervalMinutes < 15 || account.FetchIntervalMinutes > 10080 {
		return ValidationError{Field: "fetch_interval_minutes", Message: "Fetch interval must be between 15 and 10080 minutes"}
	}

	return nil
}

// ValidateStrategy checks a user-supplied sync strategy, defaulting to
// progressive when empty.
func ValidateStrategy(raw string) (models.SyncStrategy, error) {
	switch raw {
	case "":
		return models.StrategyProgressive, nil
	case string(models.StrategyProgressive):
		return models.StrategyProgressive, nil
	case string(models.StrategyRefreshOnly):
		return models.StrategyRefreshOnly, nil
	default:
		return "", ValidationError{Field: "strategy", Message: "Invalid strategy (must be progressive or refresh_only)"}
	}
}
