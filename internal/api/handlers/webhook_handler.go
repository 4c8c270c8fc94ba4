package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ofertascauca/senabot/internal/application/services"
	"github.com/ofertascauca/senabot/internal/domain/entities"
	"github.com/ofertascauca/senabot/internal/domain/repositories"
	"github.com/ofertascauca/senabot/internal/infrastructure/observability"
)

// MessageSender delivers one outbound text message.
type MessageSender interface {
	SendText(ctx context.Context, to, body string) (string, error)
}

// WebhookHandler terminates the Meta webhook: GET verification and POST
// message delivery. Replies always return 200 so Meta does not retry; every
// failure is handled internally.
type WebhookHandler struct {
	verifyToken   string
	conversations *services.ConversationService
	onboarding    *services.OnboardingService
	sender        MessageSender
	interactions  repositories.InteractionRepository
	metrics       *observability.Metrics
	logger        zerolog.Logger
}

func NewWebhookHandler(
	verifyToken string,
	conversations *services.ConversationService,
	onboarding *services.OnboardingService,
	sender MessageSender,
	interactions repositories.InteractionRepository,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		verifyToken:   verifyToken,
		conversations: conversations,
		onboarding:    onboarding,
		sender:        sender,
		interactions:  interactions,
		metrics:       metrics,
		logger:        logger,
	}
}

// metaPayload mirrors the slice of the Cloud API webhook body the bot reads.
type metaPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Contacts []struct {
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
					WaID string `json:"wa_id"`
				} `json:"contacts"`
				Messages []metaMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type metaMessage struct {
	From string `json:"from"`
	ID   string `json:"id"`
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
	Interactive struct {
		ButtonReply struct {
			Title string `json:"title"`
		} `json:"button_reply"`
		ListReply struct {
			Title string `json:"title"`
		} `json:"list_reply"`
	} `json:"interactive"`
}

// text extracts a usable message body across supported message types.
func (m *metaMessage) text() string {
	switch m.Type {
	case "text":
		return m.Text.Body
	case "interactive":
		if m.Interactive.ButtonReply.Title != "" {
			return m.Interactive.ButtonReply.Title
		}
		return m.Interactive.ListReply.Title
	}
	return ""
}

// Verify handles the Meta webhook subscription handshake.
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && token == h.verifyToken {
		h.logger.Info().Msg("webhook verification succeeded")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(challenge))
		return
	}

	h.logger.Warn().Str("mode", mode).Msg("webhook verification failed")
	http.Error(w, "forbidden", http.StatusForbidden)
}

// Receive handles one inbound webhook delivery.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	defer func() {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}()

	ctx := r.Context()
	// trace-correlated logger for everything inside this delivery
	logger := observability.LoggerFromContext(ctx)

	var payload metaPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		logger.Warn().Err(err).Msg("undecodable webhook payload")
		return
	}

	msg, name, ok := firstMessage(&payload)
	if !ok {
		return
	}
	text := msg.text()
	if msg.Type != "text" && msg.Type != "interactive" {
		text = ""
	}

	observability.RecordMessage(ctx, h.metrics, "in")

	var user *entities.User
	reply := ""
	intentLabel := "search"

	if h.onboarding != nil {
		decision := h.onboarding.Gate(ctx, msg.From, name, text)
		user = decision.User
		if !decision.Proceed {
			reply = decision.Reply
			intentLabel = "onboarding"
		}
	}
	if reply == "" {
		reply = h.conversations.HandleMessage(ctx, msg.From, text)
	}

	h.logInteraction(ctx, user, "in", msg.Type, text, intentLabel, msg.ID)

	if h.sender == nil {
		logger.Warn().Str("to", observability.MaskNumber(msg.From)).Msg("no sender configured, dropping reply")
		return
	}
	sentID, err := h.sender.SendText(ctx, msg.From, reply)
	if err != nil {
		observability.RecordSendFailure(ctx, h.metrics)
		logger.Error().Err(err).Str("to", observability.MaskNumber(msg.From)).Msg("failed to send reply")
		return
	}

	observability.RecordMessage(ctx, h.metrics, "out")
	h.logInteraction(ctx, user, "out", "text", reply, intentLabel, sentID)
}

func (h *WebhookHandler) logInteraction(ctx context.Context, user *entities.User, direction, msgType, body, intent, waMessageID string) {
	if h.interactions == nil || user == nil {
		return
	}
	interaction := &entities.Interaction{
		UserID:      user.ID,
		Direction:   direction,
		MessageType: msgType,
		Body:        body,
		Intent:      intent,
		WaMessageID: waMessageID,
	}
	if err := h.interactions.Log(ctx, interaction); err != nil {
		h.logger.Error().Err(err).Str("direction", direction).Msg("failed to log interaction")
	}
}

func firstMessage(payload *metaPayload) (*metaMessage, string, bool) {
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if len(change.Value.Messages) == 0 {
				continue
			}
			name := ""
			if len(change.Value.Contacts) > 0 {
				name = change.Value.Contacts[0].Profile.Name
			}
			return &change.Value.Messages[0], name, true
		}
	}
	return nil, "", false
}
