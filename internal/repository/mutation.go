package repository

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/models"
)

// ErrUnknownMutation is returned for a queue item no variant can decode
var ErrUnknownMutation = errors.New("unknown queued mutation")

// Mutation is a queued write. The set of variants is closed: every
// implementation lives in this file and MutationVisitor has one method per
// variant, so a new variant does not compile until every visitor handles it.
type Mutation interface {
	Accept(v MutationVisitor) error
	EntityType() constants.EntityType
	Method() constants.Method
	// TargetID is the local id for creates and the entity id otherwise
	TargetID() string
}

// MutationVisitor handles each Mutation variant
type MutationVisitor interface {
	VisitCreateChallenge(m CreateChallenge) error
	VisitUpdateChallenge(m UpdateChallenge) error
	VisitDeleteChallenge(m DeleteChallenge) error
	VisitCreateEntry(m CreateEntry) error
	VisitUpdateEntry(m UpdateEntry) error
	VisitDeleteEntry(m DeleteEntry) error
	VisitCreateFollowed(m CreateFollowed) error
	VisitDeleteFollowed(m DeleteFollowed) error
}

type CreateChallenge struct {
	LocalID string
	Payload models.ChallengePayload
}

type UpdateChallenge struct {
	ID    string
	Patch models.ChallengePatch
}

type DeleteChallenge struct {
	ID string
}

type CreateEntry struct {
	LocalID string
	Payload models.EntryPayload
}

type UpdateEntry struct {
	ID    string
	Patch models.EntryPatch
}

type DeleteEntry struct {
	ID string
}

type CreateFollowed struct {
	LocalID string
	Payload models.FollowPayload
}

type DeleteFollowed struct {
	ID string
}

func (m CreateChallenge) Accept(v MutationVisitor) error { return v.VisitCreateChallenge(m) }
func (m UpdateChallenge) Accept(v MutationVisitor) error { return v.VisitUpdateChallenge(m) }
func (m DeleteChallenge) Accept(v MutationVisitor) error { return v.VisitDeleteChallenge(m) }
func (m CreateEntry) Accept(v MutationVisitor) error     { return v.VisitCreateEntry(m) }
func (m UpdateEntry) Accept(v MutationVisitor) error     { return v.VisitUpdateEntry(m) }
func (m DeleteEntry) Accept(v MutationVisitor) error     { return v.VisitDeleteEntry(m) }
func (m CreateFollowed) Accept(v MutationVisitor) error  { return v.VisitCreateFollowed(m) }
func (m DeleteFollowed) Accept(v MutationVisitor) error  { return v.VisitDeleteFollowed(m) }

func (CreateChallenge) EntityType() constants.EntityType { return constants.EntityChallenge }
func (UpdateChallenge) EntityType() constants.EntityType { return constants.EntityChallenge }
func (DeleteChallenge) EntityType() constants.EntityType { return constants.EntityChallenge }
func (CreateEntry) EntityType() constants.EntityType     { return constants.EntityEntry }
func (UpdateEntry) EntityType() constants.EntityType     { return constants.EntityEntry }
func (DeleteEntry) EntityType() constants.EntityType     { return constants.EntityEntry }
func (CreateFollowed) EntityType() constants.EntityType  { return constants.EntityFollowed }
func (DeleteFollowed) EntityType() constants.EntityType  { return constants.EntityFollowed }

func (CreateChallenge) Method() constants.Method { return constants.MethodPost }
func (UpdateChallenge) Method() constants.Method { return constants.MethodPatch }
func (DeleteChallenge) Method() constants.Method { return constants.MethodDelete }
func (CreateEntry) Method() constants.Method     { return constants.MethodPost }
func (UpdateEntry) Method() constants.Method     { return constants.MethodPatch }
func (DeleteEntry) Method() constants.Method     { return constants.MethodDelete }
func (CreateFollowed) Method() constants.Method  { return constants.MethodPost }
func (DeleteFollowed) Method() constants.Method  { return constants.MethodDelete }

func (m CreateChallenge) TargetID() string { return m.LocalID }
func (m UpdateChallenge) TargetID() string { return m.ID }
func (m DeleteChallenge) TargetID() string { return m.ID }
func (m CreateEntry) TargetID() string     { return m.LocalID }
func (m UpdateEntry) TargetID() string     { return m.ID }
func (m DeleteEntry) TargetID() string     { return m.ID }
func (m CreateFollowed) TargetID() string  { return m.LocalID }
func (m DeleteFollowed) TargetID() string  { return m.ID }

// updateEnvelope is the stored payload of an update
type updateEnvelope struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// deleteEnvelope is the stored payload of a delete
type deleteEnvelope struct {
	ID string `json:"id"`
}

// encoder turns a mutation into its queue payload
type encoder struct {
	payload []byte
}

func (e *encoder) create(v any) error {
	b, err := json.Marshal(v)
	e.payload = b
	return err
}

func (e *encoder) update(id string, patch any) error {
	raw, err := json.Marshal(patch)
	if err != nil {
		return err
	}
	e.payload, err = json.Marshal(updateEnvelope{ID: id, Payload: raw})
	return err
}

func (e *encoder) remove(id string) error {
	b, err := json.Marshal(deleteEnvelope{ID: id})
	e.payload = b
	return err
}

func (e *encoder) VisitCreateChallenge(m CreateChallenge) error { return e.create(m.Payload) }
func (e *encoder) VisitUpdateChallenge(m UpdateChallenge) error { return e.update(m.ID, m.Patch) }
func (e *encoder) VisitDeleteChallenge(m DeleteChallenge) error { return e.remove(m.ID) }
func (e *encoder) VisitCreateEntry(m CreateEntry) error         { return e.create(m.Payload) }
func (e *encoder) VisitUpdateEntry(m UpdateEntry) error         { return e.update(m.ID, m.Patch) }
func (e *encoder) VisitDeleteEntry(m DeleteEntry) error         { return e.remove(m.ID) }
func (e *encoder) VisitCreateFollowed(m CreateFollowed) error   { return e.create(m.Payload) }
func (e *encoder) VisitDeleteFollowed(m DeleteFollowed) error   { return e.remove(m.ID) }

// Encode builds the queue item for m. Creates store the payload itself;
// updates store {"id","payload"}; deletes store {"id"}.
func Encode(m Mutation) (models.QueueItem, error) {
	var e encoder
	if err := m.Accept(&e); err != nil {
		return models.QueueItem{}, fmt.Errorf("failed to encode %s %s: %w", m.Method(), m.EntityType(), err)
	}
	return models.QueueItem{
		EntityType: m.EntityType(),
		Method:     m.Method(),
		EntityID:   m.TargetID(),
		Payload:    e.payload,
	}, nil
}

// Decode rebuilds the mutation stored in item
func Decode(item models.QueueItem) (Mutation, error) {
	m, err := decode(item)
	if err != nil {
		return nil, fmt.Errorf("queue item %s (%s %s): %w", item.ID, item.Method, item.EntityType, err)
	}
	return m, nil
}

func decode(item models.QueueItem) (Mutation, error) {
	switch item.Method {
	case constants.MethodPost:
		switch item.EntityType {
		case constants.EntityChallenge:
			var p models.ChallengePayload
			err := json.Unmarshal(item.Payload, &p)
			return CreateChallenge{LocalID: item.EntityID, Payload: p}, err
		case constants.EntityEntry:
			var p models.EntryPayload
			err := json.Unmarshal(item.Payload, &p)
			return CreateEntry{LocalID: item.EntityID, Payload: p}, err
		case constants.EntityFollowed:
			var p models.FollowPayload
			err := json.Unmarshal(item.Payload, &p)
			return CreateFollowed{LocalID: item.EntityID, Payload: p}, err
		}

	case constants.MethodPatch:
		var env updateEnvelope
		if err := json.Unmarshal(item.Payload, &env); err != nil {
			return nil, err
		}
		if env.ID == "" {
			return nil, errors.New("update payload has no id")
		}
		switch item.EntityType {
		case constants.EntityChallenge:
			var patch models.ChallengePatch
			err := json.Unmarshal(env.Payload, &patch)
			return UpdateChallenge{ID: env.ID, Patch: patch}, err
		case constants.EntityEntry:
			var patch models.EntryPatch
			err := json.Unmarshal(env.Payload, &patch)
			return UpdateEntry{ID: env.ID, Patch: patch}, err
		}

	case constants.MethodDelete:
		var env deleteEnvelope
		if err := json.Unmarshal(item.Payload, &env); err != nil {
			return nil, err
		}
		if env.ID == "" {
			return nil, errors.New("delete payload has no id")
		}
		switch item.EntityType {
		case constants.EntityChallenge:
			return DeleteChallenge{ID: env.ID}, nil
		case constants.EntityEntry:
			return DeleteEntry{ID: env.ID}, nil
		case constants.EntityFollowed:
			return DeleteFollowed{ID: env.ID}, nil
		}
	}
	return nil, ErrUnknownMutation
}
