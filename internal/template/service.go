package template

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/teeforge/customizer/internal/document"
	"github.com/teeforge/customizer/internal/geometry"
	"github.com/teeforge/customizer/internal/printarea"
	"github.com/teeforge/customizer/internal/store"
	"github.com/teeforge/customizer/internal/typeid"
)

var (
	ErrNotFound  = errors.New("template not found")
	ErrNameTaken = errors.New("template name already in use")
	ErrInvalid   = errors.New("invalid template")
)

// Template is a product layout: the canvas the customer edits on, the
// garment mockup shown under the design, and optionally the exact print
// rectangle. Without one, the configured fractions apply.
type Template struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	CanvasWidth  float64        `json:"canvasWidth"`
	CanvasHeight float64        `json:"canvasHeight"`
	PrintArea    *geometry.Rect `json:"printArea,omitempty"`
	MockupURL    string         `json:"mockupUrl,omitempty"`
	CreatedAt    string         `json:"createdAt"`
	UpdatedAt    string         `json:"updatedAt"`
}

type CreateParams struct {
	Name         string         `json:"name"`
	CanvasWidth  float64        `json:"canvasWidth"`
	CanvasHeight float64        `json:"canvasHeight"`
	PrintArea    *geometry.Rect `json:"printArea,omitempty"`
	MockupURL    string         `json:"mockupUrl,omitempty"`
}

func (p CreateParams) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if p.CanvasWidth <= 0 || p.CanvasHeight <= 0 {
		return fmt.Errorf("%w: canvas size must be positive", ErrInvalid)
	}
	return validateArea(p.PrintArea, p.CanvasWidth, p.CanvasHeight)
}

// validateArea accepts nil (use fractions) or a non-empty rectangle inside
// the canvas.
func validateArea(area *geometry.Rect, w, h float64) error {
	if area == nil {
		return nil
	}
	if !area.IsFinite() || area.IsEmpty() {
		return fmt.Errorf("%w: print area must have a positive size", ErrInvalid)
	}
	if area.Left() < 0 || area.Top() < 0 || area.Right() > w || area.Bottom() > h {
		return fmt.Errorf("%w: print area must lie inside the canvas", ErrInvalid)
	}
	return nil
}

// MockupSizer reports the pixel size of an uploaded mockup.
type MockupSizer func(url string) (width, height int, err error)

type Service struct {
	db        store.DBTX
	fractions printarea.FractionResolver
	sizer     MockupSizer
}

func NewService(db store.DBTX, fractions printarea.FractionResolver) *Service {
	return &Service{db: db, fractions: fractions}
}

// WithMockupSizer lets Create take the canvas size from the mockup when
// the request leaves it out.
func (s *Service) WithMockupSizer(sizer MockupSizer) *Service {
	s.sizer = sizer
	return s
}

const templateColumns = `id, name, canvas_width, canvas_height,
	print_left, print_top, print_width, print_height,
	mockup_url, created_at, updated_at`

func scanTemplate(row pgx.Row) (*Template, error) {
	var (
		t                        Template
		left, top, width, height *float64
		createdAt, updatedAt     time.Time
	)
	err := row.Scan(&t.ID, &t.Name, &t.CanvasWidth, &t.CanvasHeight,
		&left, &top, &width, &height,
		&t.MockupURL, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if left != nil && top != nil && width != nil && height != nil {
		t.PrintArea = &geometry.Rect{X: *left, Y: *top, Width: *width, Height: *height}
	}
	t.CreatedAt = createdAt.UTC().Format(time.RFC3339)
	t.UpdatedAt = updatedAt.UTC().Format(time.RFC3339)
	return &t, nil
}

// areaArgs flattens an optional rectangle into four nullable columns.
func areaArgs(area *geometry.Rect) (left, top, width, height *float64) {
	if area == nil {
		return nil, nil, nil, nil
	}
	return &area.X, &area.Y, &area.Width, &area.Height
}

func (s *Service) Create(ctx context.Context, p CreateParams) (*Template, error) {
	if (p.CanvasWidth <= 0 || p.CanvasHeight <= 0) && p.MockupURL != "" && s.sizer != nil {
		w, h, err := s.sizer(p.MockupURL)
		if err != nil {
			return nil, fmt.Errorf("%w: mockup %q: %v", ErrInvalid, p.MockupURL, err)
		}
		p.CanvasWidth, p.CanvasHeight = float64(w), float64(h)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	left, top, width, height := areaArgs(p.PrintArea)
	row := s.db.QueryRow(ctx, `
		INSERT INTO templates (id, name, canvas_width, canvas_height,
			print_left, print_top, print_width, print_height, mockup_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+templateColumns,
		typeid.NewTemplateID(), p.Name, p.CanvasWidth, p.CanvasHeight,
		left, top, width, height, p.MockupURL)

	t, err := scanTemplate(row)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return nil, ErrNameTaken
		}
		return nil, fmt.Errorf("create template: %w", err)
	}
	return t, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Template, error) {
	row := s.db.QueryRow(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = $1`, id)
	t, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

func (s *Service) List(ctx context.Context) ([]Template, error) {
	rows, err := s.db.Query(ctx, `SELECT `+templateColumns+` FROM templates ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	templates := make([]Template, 0)
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return templates, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePrintArea pins the print rectangle, or clears it when area is nil
// so the fractions apply again.
func (s *Service) UpdatePrintArea(ctx context.Context, id string, area *geometry.Rect) (*Template, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := validateArea(area, current.CanvasWidth, current.CanvasHeight); err != nil {
		return nil, err
	}

	left, top, width, height := areaArgs(area)
	row := s.db.QueryRow(ctx, `
		UPDATE templates
		SET print_left = $2, print_top = $3, print_width = $4, print_height = $5,
			updated_at = now()
		WHERE id = $1
		RETURNING `+templateColumns,
		id, left, top, width, height)

	t, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update print area: %w", err)
	}
	return t, nil
}

// Resolver returns the print area policy for t.
func (s *Service) Resolver(t *Template) printarea.Resolver {
	if t.PrintArea != nil {
		return printarea.StaticResolver(*t.PrintArea)
	}
	return s.fractions
}

// Resolve returns the print area for a template on its own canvas.
func (s *Service) Resolve(ctx context.Context, id string) (geometry.Rect, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return geometry.Rect{}, err
	}
	return s.Resolver(t).Resolve(t.CanvasWidth, t.CanvasHeight), nil
}

// LoadRoom opens a collaborative design on a template: a blank canvas
// with the garment mockup as its base.
func (s *Service) LoadRoom(ctx context.Context, templateID string) (*document.Design, printarea.Resolver, error) {
	t, err := s.Get(ctx, templateID)
	if err != nil {
		return nil, nil, err
	}
	return NewDesign(t), s.Resolver(t), nil
}

// NewDesign builds the starting design for a template.
func NewDesign(t *Template) *document.Design {
	d := &document.Design{
		ID: typeid.NewDesignID(),
		Canvas: document.CanvasInfo{
			Width:            t.CanvasWidth,
			Height:           t.CanvasHeight,
			DevicePixelRatio: 1,
		},
		Objects:   []*document.Object{},
		PrintArea: t.PrintArea,
	}
	if t.MockupURL != "" {
		base := document.NewObject(typeid.NewObjectID(), document.KindBase, 0, 0, t.CanvasWidth, t.CanvasHeight)
		base.Src = t.MockupURL
		d.Objects = append(d.Objects, base)
	}
	return d
}
