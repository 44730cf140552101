// Package cases records generation results against a patient case.
package cases

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"brainsim/internal/domain"
	"brainsim/internal/domain/jsoncfg"
	"brainsim/internal/infra"
	"brainsim/internal/sqlinline"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Case is one patient case and the artifacts generated for it.
type Case struct {
	ID              string                `json:"id"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	Patient         domain.PatientContext `json:"patient"`
	BasePrompt      string                `json:"base_prompt"`
	GeneratedPrompt *string               `json:"generated_prompt"`
	EHRFiles        []domain.FileMeta     `json:"ehr_files"`
	CTScans         []domain.FileMeta     `json:"ct_scans"`
	Images          map[string]*string    `json:"images"`
	VideoURL        *string               `json:"video_url"`
}

// NewCase is the input for Create.
type NewCase struct {
	Patient    domain.PatientContext `json:"patient"`
	BasePrompt string                `json:"base_prompt"`
	EHRFiles   []domain.FileMeta     `json:"ehr_files"`
	CTScans    []domain.FileMeta     `json:"ct_scans"`
}

// Store persists cases through the marker-checked SQL runner.
type Store struct {
	db infra.SQLExecutor
}

func NewStore(db infra.SQLExecutor) *Store {
	return &Store{db: db}
}

// ParseID validates a case identifier.
func ParseID(raw string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: invalid case id", domain.ErrNotFound)
	}
	return id.String(), nil
}

func (s *Store) Create(ctx context.Context, in NewCase) (*Case, error) {
	patient, err := marshalOr(in.Patient, "{}")
	if err != nil {
		return nil, err
	}
	ehr, err := marshalOr(in.EHRFiles, "[]")
	if err != nil {
		return nil, err
	}
	ct, err := marshalOr(in.CTScans, "[]")
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRow(ctx, sqlinline.QInsertCase, uuid.NewString(), patient, in.BasePrompt, ehr, ct)
	c, err := scanCase(row)
	if err != nil {
		return nil, fmt.Errorf("cases: create: %w", err)
	}
	return c, nil
}

func (s *Store) Get(ctx context.Context, rawID string) (*Case, error) {
	id, err := ParseID(rawID)
	if err != nil {
		return nil, err
	}
	c, err := scanCase(s.db.QueryRow(ctx, sqlinline.QGetCase, id))
	if infra.IsNoRows(err) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cases: get: %w", err)
	}
	return c, nil
}

// List returns cases newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Case, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	rows, err := s.db.Query(ctx, sqlinline.QListCases, limit)
	if err != nil {
		return nil, fmt.Errorf("cases: list: %w", err)
	}
	defer rows.Close()

	out := []Case{}
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("cases: list: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cases: list: %w", err)
	}
	return out, nil
}

// UpdatePrompt records a generated prompt and the files it was built from.
// Empty file lists keep the stored ones.
func (s *Store) UpdatePrompt(ctx context.Context, rawID, prompt string, ehr, ct []domain.FileMeta) error {
	ehrJSON, err := marshalOr(ehr, "[]")
	if err != nil {
		return err
	}
	ctJSON, err := marshalOr(ct, "[]")
	if err != nil {
		return err
	}
	return s.update(ctx, sqlinline.QUpdateCasePrompt, rawID, prompt, ehrJSON, ctJSON)
}

// MergeImages overlays images onto the stored per-timepoint mapping; labels not
// in images keep their previous value.
func (s *Store) MergeImages(ctx context.Context, rawID string, images map[string]*string) error {
	payload, err := json.Marshal(images)
	if err != nil {
		return fmt.Errorf("cases: marshal images: %w", err)
	}
	return s.update(ctx, sqlinline.QMergeCaseImages, rawID, string(payload))
}

func (s *Store) UpdateVideo(ctx context.Context, rawID, url string) error {
	return s.update(ctx, sqlinline.QUpdateCaseVideo, rawID, url)
}

func (s *Store) update(ctx context.Context, query, rawID string, values ...any) error {
	id, err := ParseID(rawID)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, query, append([]any{id}, values...)...)
	if err != nil {
		return fmt.Errorf("cases: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCase(row scanner) (*Case, error) {
	var (
		c                        Case
		patient, ehr, ct, images []byte
	)
	if err := row.Scan(
		&c.ID,
		&c.CreatedAt,
		&c.UpdatedAt,
		&patient,
		&c.BasePrompt,
		&c.GeneratedPrompt,
		&ehr,
		&ct,
		&images,
		&c.VideoURL,
	); err != nil {
		return nil, err
	}
	c.Patient = domain.ParsePatientContext(string(patient))
	c.EHRFiles = []domain.FileMeta{}
	c.CTScans = []domain.FileMeta{}
	c.Images = map[string]*string{}
	if err := unmarshalIfSet(ehr, &c.EHRFiles); err != nil {
		return nil, err
	}
	if err := unmarshalIfSet(ct, &c.CTScans); err != nil {
		return nil, err
	}
	if err := unmarshalIfSet(images, &c.Images); err != nil {
		return nil, err
	}
	return &c, nil
}

// marshalOr encodes v as JSON text for a jsonb parameter, using empty for nil
// values.
func marshalOr(v any, empty string) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("cases: marshal: %w", err)
	}
	if string(data) == "null" {
		return empty, nil
	}
	return string(data), nil
}

func unmarshalIfSet(data []byte, dst any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("cases: decode column: %w", err)
	}
	return nil
}

// DecodeNewCase reads a create request leniently. patient may be an object or
// a JSON string holding one, as multipart forms send it.
func DecodeNewCase(body []byte, dst *NewCase) {
	var raw struct {
		Patient    json.RawMessage   `json:"patient"`
		BasePrompt string            `json:"base_prompt"`
		EHRFiles   []domain.FileMeta `json:"ehr_files"`
		CTScans    []domain.FileMeta `json:"ct_scans"`
	}
	jsoncfg.DecodeLenient(body, &raw)

	patient := string(raw.Patient)
	var encoded string
	if err := json.Unmarshal(raw.Patient, &encoded); err == nil {
		patient = encoded
	}
	*dst = NewCase{
		Patient:    domain.ParsePatientContext(patient),
		BasePrompt: raw.BasePrompt,
		EHRFiles:   raw.EHRFiles,
		CTScans:    raw.CTScans,
	}
}
