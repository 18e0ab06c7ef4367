package command

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/ohjayaxel/syncengine/core"
)

func TestSyncShopifyMessage_ValidateReturnsRichError(t *testing.T) {
	err := (SyncShopifyMessage{DateFrom: "2024-05-01"}).Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.SyncErrorBadInput {
		t.Fatalf("expected %q text code, got %q", core.SyncErrorBadInput, rich.TextCode)
	}
}

func TestSyncShopifyCommand_NilServiceReturnsRichError(t *testing.T) {
	var cmd *SyncShopifyCommand
	err := cmd.Execute(context.Background(), SyncShopifyMessage{})
	if err == nil {
		t.Fatalf("expected command dependency error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
}
