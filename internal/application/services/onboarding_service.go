package services

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ofertascauca/senabot/internal/domain/entities"
	"github.com/ofertascauca/senabot/internal/domain/repositories"
	apperrors "github.com/ofertascauca/senabot/pkg/errors"
	"github.com/ofertascauca/senabot/pkg/textutil"
)

var acceptWords = map[string]struct{}{
	"acepto": {}, "si acepto": {}, "aceptar": {}, "de acuerdo": {}, "si": {},
}

var declineWords = map[string]struct{}{
	"no acepto": {}, "no": {}, "rechazo": {}, "no aceptar": {},
}

// OnboardingDecision is what the gate tells the caller to do with a message.
type OnboardingDecision struct {
	// Proceed is true when the message should flow to the conversation.
	Proceed bool
	// Reply is the consent-flow answer to send instead, when Proceed is false.
	Reply string
	// User is the persisted user, nil when no repository is configured.
	User *entities.User
}

// OnboardingService gates every message behind data-processing consent.
// Without a user repository it lets everything through, so the bot still
// works when Postgres is not configured.
type OnboardingService struct {
	users     repositories.UserRepository
	responder *ResponseService
	logger    zerolog.Logger
}

func NewOnboardingService(users repositories.UserRepository, responder *ResponseService, logger zerolog.Logger) *OnboardingService {
	return &OnboardingService{users: users, responder: responder, logger: logger}
}

// Gate resolves the consent state for one inbound message.
func (s *OnboardingService) Gate(ctx context.Context, waNumber, name, text string) OnboardingDecision {
	if s.users == nil {
		return OnboardingDecision{Proceed: true}
	}

	user, err := s.users.GetByWaNumber(ctx, waNumber)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			s.logger.Error().Err(err).Str("wa_number", waNumber).Msg("user lookup failed, letting message through")
			return OnboardingDecision{Proceed: true}
		}
		user = &entities.User{
			WaNumber:     waNumber,
			Name:         name,
			SessionState: entities.SessionTermsPending,
		}
		if err := s.users.Create(ctx, user); err != nil {
			s.logger.Error().Err(err).Str("wa_number", waNumber).Msg("user create failed, letting message through")
			return OnboardingDecision{Proceed: true}
		}
		return OnboardingDecision{Reply: s.responder.ConsentRequest(), User: user}
	}

	switch user.SessionState {
	case entities.SessionCompleted:
		return OnboardingDecision{Proceed: true, User: user}
	case entities.SessionTermsPending, entities.SessionDeclined:
		return s.resolveConsent(ctx, user, text)
	}
	return OnboardingDecision{Proceed: true, User: user}
}

func (s *OnboardingService) resolveConsent(ctx context.Context, user *entities.User, text string) OnboardingDecision {
	norm := textutil.Normalize(text)

	if matchesVocab(norm, acceptWords) {
		user.ConsentAccepted = true
		user.SessionState = entities.SessionCompleted
		s.persistDecision(ctx, user, "accepted")
		return OnboardingDecision{Reply: s.responder.ConsentAccepted(), User: user}
	}

	if matchesVocab(norm, declineWords) {
		user.ConsentAccepted = false
		user.SessionState = entities.SessionDeclined
		s.persistDecision(ctx, user, "declined")
		return OnboardingDecision{Reply: s.responder.ConsentDeclined(), User: user}
	}

	return OnboardingDecision{Reply: s.responder.ConsentRequest(), User: user}
}

func (s *OnboardingService) persistDecision(ctx context.Context, user *entities.User, decision string) {
	if err := s.users.UpdateSession(ctx, user); err != nil {
		s.logger.Error().Err(err).Str("user", user.ID).Msg("failed to update session state")
	}
	event := &entities.ConsentEvent{
		UserID:    user.ID,
		Decision:  decision,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.users.RecordConsent(ctx, event); err != nil {
		s.logger.Error().Err(err).Str("user", user.ID).Msg("failed to record consent event")
	}
}

func matchesVocab(norm string, vocab map[string]struct{}) bool {
	if _, ok := vocab[norm]; ok {
		return true
	}
	// multi-word entries may appear inside a longer sentence
	padded := " " + norm + " "
	for phrase := range vocab {
		if strings.Contains(phrase, " ") && strings.Contains(padded, " "+phrase+" ") {
			return true
		}
	}
	return false
}
