package session

import (
	"context"
	"fmt"

	"github.com/koustreak/classiflow/internal/errs"
	"github.com/koustreak/classiflow/internal/logger"
	"github.com/koustreak/classiflow/internal/metadata"
)

// UpdateClassification assigns (or with an empty id, clears) the
// classification of a table or one of its columns. It re-reads the stored
// config, sends the patch and reloads with the selection preserved.
//
// The returned notification is also raised on the session. Input errors
// and ErrKindBusy are returned without a notification.
func (s *Session) UpdateClassification(ctx context.Context, edit metadata.Edit) (Notification, error) {
	if !s.editing.CompareAndSwap(false, true) {
		return Notification{}, errs.New(errs.ErrKindBusy, "another classification update is in progress")
	}
	defer s.editing.Store(false)

	snap := s.Snapshot()
	table, ok := metadata.FindTable(snap.Tables, edit.Table)
	if !ok {
		return Notification{}, errs.Newf(errs.ErrKindInvalidInput, "table %q not found", edit.Table)
	}
	if !edit.IsTableEdit() {
		if _, ok := table.Column(edit.Column); !ok {
			return Notification{}, errs.Newf(errs.ErrKindInvalidInput, "column %q not found in table %q", edit.Column, edit.Table)
		}
	}
	if edit.ClassificationID != "" {
		cl, ok := snap.Catalog.Lookup(edit.ClassificationID)
		if !ok || !cl.Assignable() {
			return Notification{}, errs.Newf(errs.ErrKindInvalidInput, "classification %q is not assignable", edit.ClassificationID)
		}
	}

	log := s.log.With().Str("table", edit.Table).Str("target", edit.Target()).Logger()

	if err := s.patch(ctx, snap.Tables, edit); err != nil {
		log.Error("classification update failed", err, nil)
		return s.notify(KindError, fmt.Sprintf("Failed to update %s classification", edit.Target())), err
	}

	// A failed reload raises its own notification; the patch itself landed.
	if err := s.load(ctx, true); err != nil {
		log.Warn("reload after update failed", logger.Fields{"error": err.Error()})
	}

	log.Info("classification updated", logger.Fields{"classification_id": edit.ClassificationID})
	return s.notify(KindSuccess, fmt.Sprintf("Successfully updated %s classification", edit.Target())), nil
}

func (s *Session) patch(ctx context.Context, current []metadata.Table, edit metadata.Edit) error {
	md, err := s.remote.GetDatabaseMetadata(ctx)
	if err != nil {
		return err
	}

	cfg, err := metadata.ComputePatch(md.SchemaConfig(s.schema), current, edit)
	if err != nil {
		return err
	}

	return s.remote.PatchDatabaseMetadata(ctx, metadata.NewPatchRequest(cfg))
}
