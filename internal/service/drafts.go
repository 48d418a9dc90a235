package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/support-desk/internal/llm"
	"github.com/capitalize-ai/support-desk/internal/model"
	"github.com/capitalize-ai/support-desk/pkg/logger"
	"github.com/capitalize-ai/support-desk/pkg/metrics"
	"github.com/capitalize-ai/support-desk/pkg/tracing"
)

// ErrDraftsDisabled is returned when no LLM provider is configured.
var ErrDraftsDisabled = errors.New("reply drafts are disabled")

const (
	defaultDraftTurns = 20
	attachmentNote    = "[sent an image]"
)

// ThreadReader looks a thread up by key.
type ThreadReader interface {
	Thread(ctx context.Context, key string) (model.Thread, error)
}

// Drafter suggests operator replies. Drafts are never written to the log.
type Drafter struct {
	threads  ThreadReader
	client   llm.Client
	maxTurns int
	logger   *logger.Logger
}

// NewDrafter creates a drafter. A nil client disables drafting.
func NewDrafter(threads ThreadReader, client llm.Client, log *logger.Logger) *Drafter {
	return &Drafter{
		threads:  threads,
		client:   client,
		maxTurns: defaultDraftTurns,
		logger:   log.Named("drafter"),
	}
}

// Enabled reports whether a provider is configured.
func (d *Drafter) Enabled() bool {
	return d != nil && d.client != nil
}

// Draft asks the provider for the next reply on the thread with key.
func (d *Drafter) Draft(ctx context.Context, key string) (model.DraftResponse, error) {
	if !d.Enabled() {
		return model.DraftResponse{}, ErrDraftsDisabled
	}

	ctx, span := tracing.Start(ctx, "support.draft", "thread", key, "provider", d.client.Name())
	defer span.End()

	th, err := d.threads.Thread(ctx, key)
	if err != nil {
		return model.DraftResponse{}, err
	}

	resp, err := d.client.Complete(ctx, &llm.CompletionRequest{
		System:      SystemPrompt(th),
		Messages:    BuildPrompt(th, d.maxTurns),
		MaxTokens:   400,
		Temperature: 0.3,
	})
	if err != nil {
		metrics.DraftsTotal.WithLabelValues(d.client.Name(), "error").Inc()
		span.RecordError(err)
		d.logger.Warn("draft request failed",
			zap.String("participant_key", key),
			zap.Error(err),
		)
		return model.DraftResponse{}, fmt.Errorf("failed to draft reply: %w", err)
	}
	metrics.DraftsTotal.WithLabelValues(d.client.Name(), "ok").Inc()

	d.logger.Debug("draft generated",
		zap.String("participant_key", key),
		zap.Int("tokens_in", resp.TokensIn),
		zap.Int("tokens_out", resp.TokensOut),
		zap.Int64("latency_ms", resp.LatencyMs),
	)
	return model.DraftResponse{
		Draft:    strings.TrimSpace(resp.Content),
		Provider: d.client.Name(),
		Model:    resp.Model,
	}, nil
}

// SystemPrompt frames the model as the operator answering th.
func SystemPrompt(th model.Thread) string {
	return fmt.Sprintf(
		"You draft replies for a customer support operator talking to %s. "+
			"Operator messages appear as your own turns. Keep replies short and friendly "+
			"and never promise anything the transcript does not support.",
		th.DisplayName,
	)
}

// BuildPrompt turns the last maxTurns transcript entries into chat turns:
// participant messages become user turns and operator messages assistant
// turns. Adjacent turns with the same role are merged and the prompt
// always ends with a user turn asking for the reply.
func BuildPrompt(th model.Thread, maxTurns int) []llm.ChatMessage {
	msgs := th.Messages
	if maxTurns > 0 && len(msgs) > maxTurns {
		msgs = msgs[len(msgs)-maxTurns:]
	}

	turns := []llm.ChatMessage{{
		Role:    llm.RoleUser,
		Content: fmt.Sprintf("Conversation with %s:", th.DisplayName),
	}}
	for _, m := range msgs {
		content := strings.TrimSpace(m.Text)
		if content == "" && m.HasAttachment() {
			content = attachmentNote
		}
		if content == "" {
			continue
		}
		role := llm.RoleUser
		if m.Sender.Normalize() == model.SenderOperator {
			role = llm.RoleAssistant
		}
		turns = append(turns, llm.ChatMessage{Role: role, Content: content})
	}
	turns = append(turns, llm.ChatMessage{
		Role:    llm.RoleUser,
		Content: "Write the operator's next reply. Answer with the message text only.",
	})

	return mergeTurns(turns)
}

func mergeTurns(turns []llm.ChatMessage) []llm.ChatMessage {
	out := make([]llm.ChatMessage, 0, len(turns))
	for _, t := range turns {
		if n := len(out); n > 0 && out[n-1].Role == t.Role {
			out[n-1].Content += "\n\n" + t.Content
			continue
		}
		out = append(out, t)
	}
	return out
}
