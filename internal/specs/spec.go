// Package specs implements the spec-driven workflow: a specification moves
// through requirements, design and tasks phases, each backed by a markdown
// document, and its task list can be turned into tickets.
//
// Layout under the storage root:
//
//	specs/<uuid>/spec.yaml         metadata
//	specs/<uuid>/requirements.md   phase documents
//	specs/<uuid>/design.md
//	specs/<uuid>/tasks.md
//	active_spec                    id of the active spec
package specs

import (
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/calvinalkan/vibe-ticket/internal/storage"
	"github.com/calvinalkan/vibe-ticket/internal/ticket"
)

const (
	specsDir       = "specs"
	metaFile       = "spec.yaml"
	activeSpecFile = "active_spec"
)

var (
	ErrSpecNotFound  = fmt.Errorf("spec %w", ticket.ErrNotFound)
	ErrAmbiguousSpec = fmt.Errorf("%w: ambiguous spec reference", ticket.ErrInvalidInput)
	ErrNoActiveSpec  = fmt.Errorf("active spec %w", ticket.ErrNotFound)
	ErrInvalidPhase  = fmt.Errorf("%w: invalid phase", ticket.ErrInvalidInput)
)

// Phase is a workflow stage.
type Phase string

const (
	PhaseInitial        Phase = "initial"
	PhaseRequirements   Phase = "requirements"
	PhaseDesign         Phase = "design"
	PhaseTasks          Phase = "tasks"
	PhaseImplementation Phase = "implementation"
	PhaseCompleted      Phase = "completed"
)

// Phases lists every phase in workflow order.
var Phases = []Phase{PhaseInitial, PhaseRequirements, PhaseDesign, PhaseTasks, PhaseImplementation, PhaseCompleted}

// DocumentPhases are the phases that own a document and can be approved.
var DocumentPhases = []Phase{PhaseRequirements, PhaseDesign, PhaseTasks}

// ParseDocumentPhase accepts requirements, design or tasks.
func ParseDocumentPhase(s string) (Phase, error) {
	p := Phase(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(DocumentPhases, p) {
		return "", fmt.Errorf("%w %q (want requirements|design|tasks)", ErrInvalidPhase, s)
	}

	return p, nil
}

// Next returns the phase after p. Completed is terminal.
func (p Phase) Next() Phase {
	i := slices.Index(Phases, p)
	if i < 0 || i == len(Phases)-1 {
		return PhaseCompleted
	}

	return Phases[i+1]
}

// Before reports whether p comes earlier in the workflow than o.
func (p Phase) Before(o Phase) bool {
	return slices.Index(Phases, p) < slices.Index(Phases, o)
}

// DocumentName is the markdown file a document phase writes.
func (p Phase) DocumentName() string { return string(p) + ".md" }

// Approval records sign-off for one phase.
type Approval struct {
	ApprovedAt time.Time `yaml:"approved_at" json:"approved_at"`
	Message    string    `yaml:"message,omitempty" json:"message,omitempty"`
}

// Spec is the metadata of one specification.
type Spec struct {
	ID          string             `yaml:"id" json:"id"`
	Title       string             `yaml:"title" json:"title"`
	Description string             `yaml:"description,omitempty" json:"description,omitempty"`
	TicketID    string             `yaml:"ticket_id,omitempty" json:"ticket_id,omitempty"`
	Tags        []string           `yaml:"tags,omitempty" json:"tags"`
	Phase       Phase              `yaml:"phase" json:"phase"`
	Approvals   map[Phase]Approval `yaml:"approvals,omitempty" json:"approvals,omitempty"`
	CreatedAt   time.Time          `yaml:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `yaml:"updated_at" json:"updated_at"`
}

// Short is the first 8 characters of the id.
func (s Spec) Short() string {
	if len(s.ID) < 8 {
		return s.ID
	}

	return s.ID[:8]
}

// Approved reports whether p has been signed off.
func (s Spec) Approved(p Phase) bool {
	_, ok := s.Approvals[p]

	return ok
}

// Store manages specs below the storage root.
type Store struct {
	s *storage.FileStorage
}

// NewStore binds a Store to s.
func NewStore(s *storage.FileStorage) *Store { return &Store{s: s} }

func (st *Store) meta(id string) *storage.Document[Spec] {
	return storage.NewDocument[Spec](st.s, path.Join(specsDir, id, metaFile))
}

func docName(id string, p Phase) string { return path.Join(specsDir, id, p.DocumentName()) }

// DocumentPath is the absolute path of a phase document.
func (st *Store) DocumentPath(id string, p Phase) string {
	return filepath.Join(st.s.Root(), filepath.FromSlash(docName(id, p)))
}

// Create stores a new spec in the initial phase.
func (st *Store) Create(title, description, ticketID string, tags []string, now time.Time) (Spec, error) {
	if strings.TrimSpace(title) == "" {
		return Spec{}, fmt.Errorf("%w: title is empty", ticket.ErrInvalidInput)
	}

	sp := Spec{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		TicketID:    ticketID,
		Tags:        tags,
		Phase:       PhaseInitial,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	return sp, st.Save(sp)
}

// Save writes sp's metadata.
func (st *Store) Save(sp Spec) error {
	return st.meta(sp.ID).Update(func(cur *Spec) error {
		*cur = sp

		return nil
	})
}

// List returns every spec, oldest first.
func (st *Store) List() ([]Spec, error) {
	ids, err := st.s.Subdirs(specsDir)
	if err != nil {
		return nil, err
	}

	out := make([]Spec, 0, len(ids))

	for _, id := range ids {
		sp, err := st.meta(id).Load()
		if err != nil {
			return nil, fmt.Errorf("load spec %s: %w", id, err)
		}

		if sp.ID == "" {
			continue
		}

		out = append(out, sp)
	}

	slices.SortStableFunc(out, func(a, b Spec) int { return a.CreatedAt.Compare(b.CreatedAt) })

	return out, nil
}

// Get resolves ref as a full id or a unique id prefix.
func (st *Store) Get(ref string) (Spec, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Spec{}, fmt.Errorf("%w: empty reference", ErrSpecNotFound)
	}

	all, err := st.List()
	if err != nil {
		return Spec{}, err
	}

	var matches []Spec

	for _, sp := range all {
		if sp.ID == ref {
			return sp, nil
		}

		if strings.HasPrefix(sp.ID, ref) {
			matches = append(matches, sp)
		}
	}

	switch len(matches) {
	case 0:
		return Spec{}, fmt.Errorf("%w: %s", ErrSpecNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return Spec{}, fmt.Errorf("%w: %s matches %d specs", ErrAmbiguousSpec, ref, len(matches))
	}
}

// Resolve is Get for a non-empty ref and Active otherwise.
func (st *Store) Resolve(ref string) (Spec, error) {
	if ref == "" {
		return st.Active()
	}

	return st.Get(ref)
}

// Delete removes the spec ref resolves to, with its documents, and clears
// it as active.
func (st *Store) Delete(ref string) error {
	sp, err := st.Get(ref)
	if err != nil {
		return err
	}

	id := sp.ID

	if err := st.s.RemoveDir(path.Join(specsDir, id)); err != nil {
		return err
	}

	active, ok, err := st.activeID()
	if err != nil {
		return err
	}

	if ok && active == id {
		return st.s.RemoveFile(activeSpecFile)
	}

	return nil
}

// SetActive marks the spec ref resolves to as active.
func (st *Store) SetActive(ref string) (Spec, error) {
	sp, err := st.Get(ref)
	if err != nil {
		return Spec{}, err
	}

	return sp, st.s.WriteFile(activeSpecFile, []byte(sp.ID+"\n"))
}

// Active returns the active spec.
func (st *Store) Active() (Spec, error) {
	id, ok, err := st.activeID()
	if err != nil {
		return Spec{}, err
	}

	if !ok {
		return Spec{}, ErrNoActiveSpec
	}

	return st.Get(id)
}

func (st *Store) activeID() (string, bool, error) {
	data, ok, err := st.s.ReadFile(activeSpecFile)
	if err != nil || !ok {
		return "", false, err
	}

	id := strings.TrimSpace(string(data))

	return id, id != "", nil
}

// Document returns the content of a phase document and whether it exists.
func (st *Store) Document(id string, p Phase) (string, bool, error) {
	data, ok, err := st.s.ReadFile(docName(id, p))

	return string(data), ok, err
}

// OpenPhase moves sp into document phase p and writes the phase template
// when the document does not exist yet. created reports whether it did.
func (st *Store) OpenPhase(sp Spec, p Phase, now time.Time) (Spec, bool, error) {
	if !slices.Contains(DocumentPhases, p) {
		return sp, false, fmt.Errorf("%w %q", ErrInvalidPhase, p)
	}

	_, exists, err := st.Document(sp.ID, p)
	if err != nil {
		return sp, false, err
	}

	if !exists {
		content, err := Render(p, sp, now)
		if err != nil {
			return sp, false, err
		}

		if err := st.s.WriteFile(docName(sp.ID, p), []byte(content)); err != nil {
			return sp, false, err
		}
	}

	if sp.Phase.Before(p) {
		sp.Phase = p
	}

	sp.UpdatedAt = now

	return sp, !exists, st.Save(sp)
}

// Approve records sign-off for p and advances the spec past it when p is
// the current phase.
func (st *Store) Approve(sp Spec, p Phase, message string, now time.Time) (Spec, error) {
	if !slices.Contains(DocumentPhases, p) {
		return sp, fmt.Errorf("%w %q (want requirements|design|tasks)", ErrInvalidPhase, p)
	}

	if _, ok, err := st.Document(sp.ID, p); err != nil {
		return sp, err
	} else if !ok {
		return sp, fmt.Errorf("%w: %s document does not exist, run `vt spec %s` first", ticket.ErrInvalidInput, p, p)
	}

	if sp.Approvals == nil {
		sp.Approvals = make(map[Phase]Approval)
	}

	sp.Approvals[p] = Approval{ApprovedAt: now, Message: message}

	if sp.Phase == p {
		sp.Phase = p.Next()
	}

	sp.UpdatedAt = now

	return sp, st.Save(sp)
}

// Progress summarizes which document phases exist and are approved.
type Progress struct {
	Phase    Phase `json:"phase"`
	Document bool  `json:"document"`
	Approved bool  `json:"approved"`
}

// Status reports per-phase progress for sp.
func (st *Store) Status(sp Spec) ([]Progress, error) {
	out := make([]Progress, 0, len(DocumentPhases))

	for _, p := range DocumentPhases {
		_, ok, err := st.Document(sp.ID, p)
		if err != nil {
			return nil, err
		}

		out = append(out, Progress{Phase: p, Document: ok, Approved: sp.Approved(p)})
	}

	return out, nil
}
