package sync

import (
	"context"
	"testing"

	"github.com/creatorpulse/creatorpulse/internal/models"
)

func writerFixture(t *testing.T, defaultQuota int) (*StorageWriter, *MemoryContentRepository, *MemoryQuotaRepository) {
	t.Helper()
	content := NewMemoryContentRepository()
	quota := NewMemoryQuotaRepository(defaultQuota)
	return NewStorageWriter(content, quota, nil, testLogger(), 0), content, quota
}

func automaticAccount() *models.TrackedAccount {
	return &models.TrackedAccount{
		ID:             "acc-1",
		OrganizationID: "org-1",
		ProjectID:      "proj-1",
		Platform:       models.PlatformTikTok,
		Username:       "creator",
		CreatorType:    models.CreatorTypeAutomatic,
	}
}

func TestSaveContentCreatesNewItems(t *testing.T) {
	writer, content, quota := writerFixture(t, 100)
	account := automaticAccount()

	items := []models.NormalizedContent{
		video("v1", 1000),
		video("v2", 2000),
	}

	result, err := writer.SaveContent(context.Background(), items, account, models.SnapshotReasonManualRefresh)
	if err != nil {
		t.Fatalf("SaveContent: %v", err)
	}
	if result.Created != 2 || result.Updated != 0 || result.QuotaSkipped != 0 {
		t.Errorf("result = %+v, want 2 created", result)
	}

	stored, err := content.ListByAccount(context.Background(), account.ID)
	if err != nil {
		t.Fatalf("ListByAccount: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("stored %d items, want 2", len(stored))
	}
	for _, item := range stored {
		if item.Status != models.ContentStatusActive {
			t.Errorf("item %s status = %s, want active", item.NativeID, item.Status)
		}
		snaps, _ := content.ListSnapshots(context.Background(), item.ID, 0)
		if len(snaps) != 1 || snaps[0].Reason != models.SnapshotReasonInitial {
			t.Errorf("item %s should have one initial snapshot, got %d", item.NativeID, len(snaps))
		}
	}

	used, _, err := quota.GetQuota(context.Background(), account.OrganizationID)
	if err != nil {
		t.Fatalf("GetQuota: %v", err)
	}
	if used != 2 {
		t.Errorf("quota used = %d, want 2", used)
	}
}

func TestSaveContentRefreshesKnownItems(t *testing.T) {
	writer, content, quota := writerFixture(t, 100)
	account := automaticAccount()

	seed := &models.ContentItem{
		ID:        "item-1",
		AccountID: account.ID,
		ProjectID: account.ProjectID,
		Platform:  account.Platform,
		NativeID:  "v1",
		Views:     100,
		Status:    models.ContentStatusActive,
	}
	if err := content.CreateBatch(context.Background(), []*models.ContentItem{seed}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	result, err := writer.SaveContent(context.Background(), []models.NormalizedContent{video("v1", 5000)}, account, models.SnapshotReasonScheduledRefresh)
	if err != nil {
		t.Fatalf("SaveContent: %v", err)
	}
	if result.Updated != 1 || result.Created != 0 {
		t.Errorf("result = %+v, want 1 updated", result)
	}

	item, _ := content.GetByNativeID(context.Background(), account.ID, "v1")
	if item.Views != 5000 {
		t.Errorf("Views = %d, want 5000", item.Views)
	}
	if item.LastRefreshedAt == nil {
		t.Error("LastRefreshedAt not stamped")
	}

	snaps, _ := content.ListSnapshots(context.Background(), item.ID, 0)
	if len(snaps) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(snaps))
	}
	if snaps[0].Reason != models.SnapshotReasonScheduledRefresh {
		t.Errorf("snapshot reason = %s, want scheduled_refresh", snaps[0].Reason)
	}

	// Refresh never consumes quota.
	used, _, _ := quota.GetQuota(context.Background(), account.OrganizationID)
	if used != 0 {
		t.Errorf("quota used = %d, want 0 after refresh-only write", used)
	}
}

func TestSaveContentManualAccountNeverCreates(t *testing.T) {
	writer, content, _ := writerFixture(t, 100)
	account := automaticAccount()
	account.CreatorType = models.CreatorTypeManual

	seed := &models.ContentItem{
		ID:        "item-1",
		AccountID: account.ID,
		ProjectID: account.ProjectID,
		Platform:  account.Platform,
		NativeID:  "known",
		Status:    models.ContentStatusActive,
	}
	if err := content.CreateBatch(context.Background(), []*models.ContentItem{seed}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	items := []models.NormalizedContent{
		video("known", 500),
		video("unknown", 900),
	}
	result, err := writer.SaveContent(context.Background(), items, account, models.SnapshotReasonManualRefresh)
	if err != nil {
		t.Fatalf("SaveContent: %v", err)
	}
	if result.Created != 0 {
		t.Errorf("Created = %d, want 0 for a manual account", result.Created)
	}
	if result.Updated != 1 {
		t.Errorf("Updated = %d, want 1", result.Updated)
	}

	if got, _ := content.GetByNativeID(context.Background(), account.ID, "unknown"); got != nil {
		t.Error("manual account grew its content set")
	}
}

func TestSaveContentQuotaSkipsSilently(t *testing.T) {
	writer, content, quota := writerFixture(t, 2)
	account := automaticAccount()

	items := []models.NormalizedContent{
		video("v1", 1),
		video("v2", 2),
		video("v3", 3),
		video("v4", 4),
	}

	result, err := writer.SaveContent(context.Background(), items, account, models.SnapshotReasonManualRefresh)
	if err != nil {
		t.Fatalf("quota exhaustion must not be an error: %v", err)
	}
	if result.Created != 2 {
		t.Errorf("Created = %d, want 2 up to the limit", result.Created)
	}
	if result.QuotaSkipped != 2 {
		t.Errorf("QuotaSkipped = %d, want 2", result.QuotaSkipped)
	}

	stored, _ := content.ListByAccount(context.Background(), account.ID)
	if len(stored) != 2 {
		t.Errorf("stored %d items, want 2", len(stored))
	}
	used, _, _ := quota.GetQuota(context.Background(), account.OrganizationID)
	if used != 2 {
		t.Errorf("quota used = %d, want 2", used)
	}
}

func TestSaveContentQuotaDoesNotBlockRefresh(t *testing.T) {
	writer, content, quota := writerFixture(t, 1)
	account := automaticAccount()

	seed := &models.ContentItem{
		ID:        "item-1",
		AccountID: account.ID,
		ProjectID: account.ProjectID,
		Platform:  account.Platform,
		NativeID:  "known",
		Views:     10,
		Status:    models.ContentStatusActive,
	}
	if err := content.CreateBatch(context.Background(), []*models.ContentItem{seed}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := quota.AddUsage(context.Background(), account.OrganizationID, 1); err != nil {
		t.Fatalf("AddUsage: %v", err)
	}

	items := []models.NormalizedContent{
		video("known", 999),
		video("new", 1),
	}
	result, err := writer.SaveContent(context.Background(), items, account, models.SnapshotReasonManualRefresh)
	if err != nil {
		t.Fatalf("SaveContent: %v", err)
	}
	if result.Updated != 1 {
		t.Errorf("Updated = %d, want 1: refresh is unaffected by quota", result.Updated)
	}
	if result.Created != 0 || result.QuotaSkipped != 1 {
		t.Errorf("result = %+v, want 0 created, 1 quota-skipped", result)
	}

	item, _ := content.GetByNativeID(context.Background(), account.ID, "known")
	if item.Views != 999 {
		t.Errorf("Views = %d, want 999", item.Views)
	}
}

func TestSaveContentRecordsItemError(t *testing.T) {
	writer, content, _ := writerFixture(t, 100)
	account := automaticAccount()

	seed := &models.ContentItem{
		ID:        "item-1",
		AccountID: account.ID,
		ProjectID: account.ProjectID,
		Platform:  account.Platform,
		NativeID:  "v1",
		Status:    models.ContentStatusActive,
	}
	if err := content.CreateBatch(context.Background(), []*models.ContentItem{seed}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	errored := video("v1", 0)
	errored.Error = &models.ContentError{Class: models.ContentErrorDeleted}

	if _, err := writer.SaveContent(context.Background(), []models.NormalizedContent{errored}, account, models.SnapshotReasonManualRefresh); err != nil {
		t.Fatalf("SaveContent: %v", err)
	}

	item, _ := content.GetByNativeID(context.Background(), account.ID, "v1")
	if item.Status != models.ContentStatusError {
		t.Errorf("status = %s, want error", item.Status)
	}
	if item.ErrorClass != models.ContentErrorDeleted {
		t.Errorf("error class = %s, want deleted", item.ErrorClass)
	}

	// A later healthy refresh clears the error state.
	if _, err := writer.SaveContent(context.Background(), []models.NormalizedContent{video("v1", 50)}, account, models.SnapshotReasonManualRefresh); err != nil {
		t.Fatalf("SaveContent: %v", err)
	}
	item, _ = content.GetByNativeID(context.Background(), account.ID, "v1")
	if item.Status != models.ContentStatusActive || item.ErrorClass != "" {
		t.Errorf("error state not cleared: status=%s class=%s", item.Status, item.ErrorClass)
	}
}

func TestSaveContentFlushesInBatches(t *testing.T) {
	content := NewMemoryContentRepository()
	quota := NewMemoryQuotaRepository(100)
	writer := NewStorageWriter(content, quota, nil, testLogger(), 3)
	account := automaticAccount()

	var items []models.NormalizedContent
	for i := 0; i < 7; i++ {
		items = append(items, video(string(rune('a'+i)), int64(i)))
	}

	result, err := writer.SaveContent(context.Background(), items, account, models.SnapshotReasonManualRefresh)
	if err != nil {
		t.Fatalf("SaveContent: %v", err)
	}
	if result.Created != 7 {
		t.Errorf("Created = %d, want 7", result.Created)
	}

	stored, _ := content.ListByAccount(context.Background(), account.ID)
	if len(stored) != 7 {
		t.Errorf("stored %d items across flushes, want 7", len(stored))
	}
	used, _, _ := quota.GetQuota(context.Background(), account.OrganizationID)
	if used != 7 {
		t.Errorf("quota used = %d, want 7", used)
	}
}

func TestSaveContentEmptyInput(t *testing.T) {
	writer, _, _ := writerFixture(t, 100)
	result, err := writer.SaveContent(context.Background(), nil, automaticAccount(), models.SnapshotReasonManualRefresh)
	if err != nil {
		t.Fatalf("SaveContent: %v", err)
	}
	if result.Count() != 0 {
		t.Errorf("Count = %d, want 0", result.Count())
	}
}

func TestWriteResultCount(t *testing.T) {
	r := WriteResult{Created: 2, Updated: 3, QuotaSkipped: 1}
	if r.Count() != 5 {
		t.Errorf("Count = %d, want 5", r.Count())
	}
}
