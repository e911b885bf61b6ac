package database

import (
	"time"

	"github.com/pkg/errors"

	"stock-target-bot/internal/types"
)

// Store adapts the targets table to the registry's persistence interface.
type Store struct{}

func (Store) LoadTargets() ([]types.Target, error)   { return GetAllTargets() }
func (Store) UpsertTarget(t types.Target) error      { return UpsertTarget(t) }
func (Store) DeleteTarget(o int64, s string) error   { return DeleteTarget(o, s) }
func (Store) SaveAlertStates(t []types.Target) error { return SaveAlertStates(t) }

// UpsertTarget writes a target, overwriting any previous row for the
// same (chat_id, symbol) pair.
func UpsertTarget(t types.Target) error {
	query := `
	INSERT OR REPLACE INTO targets
		(chat_id, symbol, target_price, condition, approach_pct, delivery,
		 broadcast_chat_id, created_at, live_chat_id, live_message_id, approach_sent)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`

	_, err := DB.Exec(query,
		t.OwnerID, t.Symbol, t.TargetPrice, string(t.Condition), t.ApproachPct,
		string(t.Delivery), t.BroadcastChatID, t.CreatedAt.UTC().Format(time.RFC3339),
		t.LiveMessage.ChatID, t.LiveMessage.MessageID, boolToInt(t.ApproachSent))
	return errors.Wrap(err, "failed to upsert target")
}

// DeleteTarget removes a target and its alert state.
func DeleteTarget(ownerID int64, symbol string) error {
	_, err := DB.Exec(`DELETE FROM targets WHERE chat_id = ? AND symbol = ?;`, ownerID, symbol)
	return errors.Wrap(err, "failed to delete target")
}

// GetAllTargets fetches every registered target.
func GetAllTargets() ([]types.Target, error) {
	query := `
	SELECT chat_id, symbol, target_price, condition, approach_pct, delivery,
	       broadcast_chat_id, created_at, live_chat_id, live_message_id, approach_sent
	FROM targets;`

	rows, err := DB.Query(query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query targets")
	}
	defer rows.Close()

	var targets []types.Target
	for rows.Next() {
		var t types.Target
		var condition, delivery, createdAt string
		var approachSent int
		if err := rows.Scan(&t.OwnerID, &t.Symbol, &t.TargetPrice, &condition, &t.ApproachPct,
			&delivery, &t.BroadcastChatID, &createdAt,
			&t.LiveMessage.ChatID, &t.LiveMessage.MessageID, &approachSent); err != nil {
			return nil, errors.Wrap(err, "failed to scan target row")
		}
		t.Condition = types.Condition(condition)
		t.Delivery = types.Delivery(delivery)
		t.ApproachSent = approachSent != 0
		if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
			t.CreatedAt = ts
		}
		targets = append(targets, t)
	}

	return targets, rows.Err()
}

// SaveAlertStates persists the monitor's per-cycle alert-state mutations
// in one transaction. Rows deleted since the cycle snapshot are simply
// not matched by the UPDATE, so a stale write-back cannot resurrect them.
func SaveAlertStates(targets []types.Target) error {
	if len(targets) == 0 {
		return nil
	}

	tx, err := DB.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin alert state transaction")
	}

	stmt, err := tx.Prepare(`
	UPDATE targets
	SET live_chat_id = ?, live_message_id = ?, approach_sent = ?
	WHERE chat_id = ? AND symbol = ?;`)
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "failed to prepare alert state update")
	}
	defer stmt.Close()

	for _, t := range targets {
		if _, err := stmt.Exec(t.LiveMessage.ChatID, t.LiveMessage.MessageID,
			boolToInt(t.ApproachSent), t.OwnerID, t.Symbol); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "failed to update alert state for %s", t.Symbol)
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit alert states")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
