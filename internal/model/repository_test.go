package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestRepoStatus_Valid(t *testing.T) {
	tests := []struct {
		status RepoStatus
		want   bool
	}{
		{StatusNew, true},
		{StatusUpdating, true},
		{StatusCollecting, true},
		{StatusComplete, true},
		{StatusError, true},
		{RepoStatus(""), false},
		{RepoStatus("new"), false},
		{RepoStatus("Archived"), false},
	}

	for _, tt := range tests {
		if got := tt.status.Valid(); got != tt.want {
			t.Errorf("RepoStatus(%q).Valid() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestRepository_JSONOmitsArchivedAt(t *testing.T) {
	repo := Repository{
		ID:      1,
		URL:     "https://github.com/chaoss/augur",
		GroupID: FrontendDefaultGroupID,
		Status:  StatusNew,
		Source:  SourceFrontend,
	}

	data, err := json.Marshal(repo)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}

	if strings.Contains(string(data), "archived_at") {
		t.Errorf("json = %s, want no archived_at field", data)
	}

	now := time.Now()
	repo.ArchivedAt = &now

	data, err = json.Marshal(repo)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}

	if !strings.Contains(string(data), `"archived_at"`) {
		t.Errorf("json = %s, want archived_at field", data)
	}
}

func TestReservedGroups(t *testing.T) {
	groups := ReservedGroups()
	if len(groups) != 2 {
		t.Fatalf("len(ReservedGroups()) = %d, want 2", len(groups))
	}

	for _, g := range groups {
		if !IsReservedGroup(g.ID) {
			t.Errorf("IsReservedGroup(%d) = false, want true", g.ID)
		}
	}

	if groups[0].OwnerID != nil {
		t.Error("frontend default group should be system owned")
	}

	if groups[1].OwnerID == nil || *groups[1].OwnerID != CLIActorID {
		t.Error("CLI default group should be owned by the CLI actor")
	}

	if IsReservedGroup(2) {
		t.Error("IsReservedGroup(2) = true, want false")
	}
}
