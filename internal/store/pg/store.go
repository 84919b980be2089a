package pg

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"eventpush/internal/store"
)

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Store struct {
	DB DB
}

func New(db DB) *Store { return &Store{DB: db} }

func (s *Store) FindByIdempotency(ctx context.Context, idemKey string) (store.IdempotencyResult, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT id, state FROM notifications WHERE idempotency_key=$1
	`, idemKey)
	var id, state string
	if err := row.Scan(&id, &state); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.IdempotencyResult{Found: false}, nil
		}
		return store.IdempotencyResult{}, err
	}
	return store.IdempotencyResult{NotificationID: id, State: state, Found: true}, nil
}

func (s *Store) InsertNotification(ctx context.Context, in store.NotificationInsert) error {
	varsB, _ := json.Marshal(in.Vars)
	routeB, err := json.Marshal(in.Route)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `
		INSERT INTO notifications (id, receiver_id, idempotency_key, template_id, vars_json, route_json, state, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)
	`, in.ID, in.ReceiverID, in.IdemKey, in.TemplateID, varsB, routeB, in.State, in.Now)
	return err
}

func (s *Store) MarkState(ctx context.Context, in store.StateUpdate) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE notifications SET state=$2, last_error=$3, updated_at=$4 WHERE id=$1
	`, in.ID, in.State, nullIfEmpty(in.LastError), in.Now)
	return err
}

func (s *Store) SetProviderDetails(ctx context.Context, in store.ProviderDetailsUpdate) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE notifications SET provider=$2, provider_msg_id=$3, state=$4, badge_count=$5, updated_at=$6 WHERE id=$1
	`, in.ID, in.Provider, in.ProviderMsgID, in.State, in.BadgeCount, in.Now)
	return err
}

func (s *Store) GetNotificationForWorker(ctx context.Context, id string) (store.NotificationForWorker, error) {
	var varsJSON, routeJSON []byte
	row := s.DB.QueryRow(ctx, `
		SELECT receiver_id, template_id, state, COALESCE(provider_msg_id,''), vars_json, route_json, created_at
		FROM notifications WHERE id=$1
	`, id)
	var out store.NotificationForWorker
	err := row.Scan(&out.ReceiverID, &out.TemplateID, &out.State, &out.ProviderMsgID, &varsJSON, &routeJSON, &out.CreatedAt)
	if err != nil {
		return store.NotificationForWorker{}, err
	}
	_ = json.Unmarshal(varsJSON, &out.Vars)
	if err := json.Unmarshal(routeJSON, &out.Route); err != nil {
		return store.NotificationForWorker{}, err
	}
	return out, nil
}

// ClaimNotification moves a queued notification to processing. A processing row whose
// claim is older than staleAfter can be reclaimed.
func (s *Store) ClaimNotification(ctx context.Context, id string, now time.Time, staleAfter time.Duration) (bool, error) {
	staleBefore := now.Add(-staleAfter)
	ct, err := s.DB.Exec(ctx, `
		UPDATE notifications
		SET state=$2, updated_at=$3
		WHERE id=$1 AND (state='queued' OR (state=$2 AND updated_at < $4))
	`, id, "processing", now, staleBefore)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (s *Store) InsertAttempt(ctx context.Context, in store.ProviderAttempt) error {
	reqB, _ := json.Marshal(in.RequestJSON)
	respB, _ := json.Marshal(in.ResponseJSON)
	_, err := s.DB.Exec(ctx, `
		INSERT INTO provider_attempts (notification_id, provider, provider_msg_id, http_status, error_code, error_msg, request_json, response_json)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, in.NotificationID, in.Provider, nullIfEmpty(in.ProviderMsgID), in.HTTPStatus, nullIfEmpty(in.ErrorCode), nullIfEmpty(in.ErrorMsg), reqB, respB)
	return err
}

func (s *Store) IsOptedOut(ctx context.Context, receiverID string) (bool, error) {
	row := s.DB.QueryRow(ctx, `SELECT 1 FROM push_opt_outs WHERE receiver_id=$1`, receiverID)
	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Store) InsertDeliveryEvent(ctx context.Context, in store.DeliveryEvent) error {
	b, _ := json.Marshal(in.Payload)
	_, err := s.DB.Exec(ctx, `
		INSERT INTO delivery_events (provider, provider_msg_id, event, receiver_id, payload_json, occurred_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, in.Provider, in.ProviderMsgID, in.Event, nullIfEmpty(in.ReceiverID), b, in.OccurredAt)
	return err
}

func (s *Store) UpdateByProviderMsgID(ctx context.Context, in store.ProviderMsgUpdate) (bool, error) {
	keep := in.KeepStates
	if keep == nil {
		keep = []string{}
	}
	ct, err := s.DB.Exec(ctx, `
		UPDATE notifications
		SET state=$3, last_error=$4, updated_at=$5
		WHERE provider=$1 AND provider_msg_id=$2 AND NOT (state = ANY($6))
	`, in.Provider, in.ProviderMsgID, in.NewState, nullIfEmpty(in.LastError), in.Now, keep)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (s *Store) ProviderMsgExists(ctx context.Context, provider, providerMsgID string) (bool, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT 1 FROM notifications WHERE provider=$1 AND provider_msg_id=$2
	`, provider, providerMsgID)
	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Store) GetNotification(ctx context.Context, id string) (store.Notification, bool, error) {
	var n store.Notification
	var routeJSON []byte
	row := s.DB.QueryRow(ctx, `
		SELECT id, receiver_id, template_id, route_json, state,
		       COALESCE(provider,''), COALESCE(provider_msg_id,''), COALESCE(badge_count,0), COALESCE(last_error,''),
		       created_at, updated_at
		FROM notifications WHERE id=$1
	`, id)

	err := row.Scan(&n.ID, &n.ReceiverID, &n.TemplateID, &routeJSON, &n.State,
		&n.Provider, &n.ProviderMsgID, &n.BadgeCount, &n.LastError, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Notification{}, false, nil
		}
		return store.Notification{}, false, err
	}
	_ = json.Unmarshal(routeJSON, &n.Route)
	return n, true, nil
}

// SetUserPhone stores the E.164 form alongside its canonical key.
func (s *Store) SetUserPhone(ctx context.Context, userID, e164, canonical string, now time.Time) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO users (id, phone_e164, phone_canonical, updated_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE SET phone_e164=EXCLUDED.phone_e164, phone_canonical=EXCLUDED.phone_canonical, updated_at=EXCLUDED.updated_at
	`, userID, e164, canonical, now)
	return err
}

func (s *Store) GetUserPhone(ctx context.Context, userID string) (string, bool, error) {
	row := s.DB.QueryRow(ctx, `SELECT COALESCE(phone_e164,'') FROM users WHERE id=$1`, userID)
	var p string
	if err := row.Scan(&p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return p, p != "", nil
}

func (s *Store) SetEventInvites(ctx context.Context, in store.EventInvites, now time.Time) error {
	phones := in.Phones
	if phones == nil {
		phones = []string{}
	}
	_, err := s.DB.Exec(ctx, `
		INSERT INTO events (id, title, invite_phones, updated_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, invite_phones=EXCLUDED.invite_phones, updated_at=EXCLUDED.updated_at
	`, in.EventID, in.Title, phones, now)
	return err
}

// ListEventInvites returns every event with a non-empty invite list.
func (s *Store) ListEventInvites(ctx context.Context) ([]store.EventInvites, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, title, invite_phones FROM events
		WHERE cardinality(invite_phones) > 0
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.EventInvites
	for rows.Next() {
		var ev store.EventInvites
		if err := rows.Scan(&ev.EventID, &ev.Title, &ev.Phones); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
