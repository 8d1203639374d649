package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klipach/dapper/backend"
	"github.com/klipach/dapper/contract"
	"github.com/klipach/dapper/log"
)

// Step is one of the four mirrored writes of a send.
type Step int

const (
	StepAuthorMessage Step = iota + 1
	StepPartnerMessage
	StepAuthorRecent
	StepPartnerRecent
)

var steps = []Step{StepAuthorMessage, StepPartnerMessage, StepAuthorRecent, StepPartnerRecent}

func (s Step) String() string {
	switch s {
	case StepAuthorMessage:
		return "author_message"
	case StepPartnerMessage:
		return "partner_message"
	case StepAuthorRecent:
		return "author_recent_message"
	case StepPartnerRecent:
		return "partner_recent_message"
	}
	return "unknown"
}

// op names the write in status lines shown to the user.
func (s Step) op() string {
	switch s {
	case StepAuthorMessage:
		return "save message into Firestore"
	case StepPartnerMessage:
		return "save recipient message into Firestore"
	case StepAuthorRecent:
		return "save recent message"
	case StepPartnerRecent:
		return "save recent message to recipient"
	}
	return "save"
}

var errMissingParticipant = errors.New("both author and partner ids are required")

// StepResult is the outcome of one write. Err is a *backend.WriteError.
type StepResult struct {
	Step Step
	Path string
	Err  error
}

func (r StepResult) OK() bool { return r.Err == nil }

// SendResult aggregates the per-step outcomes of a send. Successful steps
// are never rolled back when a sibling fails.
type SendResult struct {
	Message contract.Message
	Steps   []StepResult
}

func (r SendResult) OK() bool {
	for _, s := range r.Steps {
		if s.Err != nil {
			return false
		}
	}
	return true
}

// Step returns the outcome of one step.
func (r SendResult) Step(step Step) (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Step == step {
			return s, true
		}
	}
	return StepResult{}, false
}

func (r SendResult) Failed() []StepResult {
	var failed []StepResult
	for _, s := range r.Steps {
		if s.Err != nil {
			failed = append(failed, s)
		}
	}
	return failed
}

// Err joins the failures of all steps, nil if every write succeeded.
func (r SendResult) Err() error {
	var errs []error
	for _, s := range r.Failed() {
		errs = append(errs, s.Err)
	}
	return errors.Join(errs...)
}

// Status names every failed write, empty when the send fully succeeded.
func (r SendResult) Status() string {
	var parts []string
	for _, s := range r.Failed() {
		parts = append(parts, s.Err.Error())
	}
	return strings.Join(parts, "; ")
}

// Sender writes a message to both participants' inboxes and updates both
// conversation summaries. Writes are best effort and never retried.
type Sender struct {
	docs  backend.Documents
	now   func() time.Time
	newID func() string
}

func NewSender(docs backend.Documents) *Sender {
	return &Sender{
		docs:  docs,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Send delivers text from authorID to partnerID. The returned error is set
// only when the send could not be attempted at all; write failures are
// reported per step in the result.
func (s *Sender) Send(ctx context.Context, partnerID, authorID, text string) (SendResult, error) {
	if partnerID == "" || authorID == "" {
		return SendResult{}, errMissingParticipant
	}
	for _, id := range []string{partnerID, authorID} {
		if err := backend.ValidID(id); err != nil {
			return SendResult{}, err
		}
	}
	logger := log.LoggerFromContext(ctx).With(
		slog.String(userIDLogField, authorID),
		slog.String(partnerIDLogField, partnerID),
	)

	msg := contract.Message{
		ID:        s.newID(),
		FromID:    authorID,
		ToID:      partnerID,
		Text:      text,
		Timestamp: s.now(),
	}
	partner := s.profile(ctx, logger, partnerID)
	author := s.profile(ctx, logger, authorID)

	// the author's summary shows the partner, the partner's shows the author
	authorRecent := contract.RecentMessage{
		ConversationID:  partnerID,
		FromID:          authorID,
		ToID:            partnerID,
		Text:            text,
		Timestamp:       msg.Timestamp,
		ProfileImageURL: partner.ProfileImageURL,
		Email:           partner.Email,
	}
	partnerRecent := authorRecent
	partnerRecent.ConversationID = authorID
	partnerRecent.ProfileImageURL = author.ProfileImageURL
	partnerRecent.Email = author.Email

	writes := map[Step]struct {
		path   string
		record any
	}{
		StepAuthorMessage:  {backend.MessagePath(authorID, partnerID, msg.ID), msg},
		StepPartnerMessage: {backend.MessagePath(partnerID, authorID, msg.ID), msg},
		StepAuthorRecent:   {backend.RecentMessagePath(authorID, partnerID), authorRecent},
		StepPartnerRecent:  {backend.RecentMessagePath(partnerID, authorID), partnerRecent},
	}

	result := SendResult{Message: msg, Steps: make([]StepResult, 0, len(steps))}
	for _, step := range steps {
		w := writes[step]
		sr := StepResult{Step: step, Path: w.path}
		if err := s.docs.Set(ctx, w.path, w.record); err != nil {
			sr.Err = &backend.WriteError{Op: step.op(), Path: w.path, Err: err}
			logger.Error("mirrored write failed",
				slog.String(stepLogField, step.String()),
				slog.String(pathLogField, w.path),
				slog.String(errorMsgLogField, err.Error()),
			)
		}
		result.Steps = append(result.Steps, sr)
	}
	if result.OK() {
		logger.Info("message sent", slog.String(messageIDLogField, msg.ID))
	}
	return result, nil
}

// profile reads users/{uid}; a failed lookup only leaves the summary blank.
func (s *Sender) profile(ctx context.Context, logger *slog.Logger, uid string) contract.User {
	var u contract.User
	doc, err := s.docs.Get(ctx, backend.UserPath(uid))
	if err == nil {
		err = doc.DataTo(&u)
	}
	if err != nil {
		logger.Warn("error while fetching profile",
			slog.String(userIDLogField, uid),
			slog.String(errorMsgLogField, err.Error()),
		)
	}
	return u
}
