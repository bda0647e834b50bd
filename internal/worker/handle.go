package worker

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"complaintbot/internal/bot"
	"complaintbot/internal/models"
	"complaintbot/internal/service/intake"
)

// handleEvent runs the whole pipeline for one event: load session, classify,
// ingest media when needed, transition, persist. It always runs inside the
// owning user's worker goroutine.
func (m *Manager) handleEvent(ctx context.Context, ev models.Event) (models.Reply, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	session, err := m.loadSession(ctx, ev.ChatID)
	if err != nil {
		return models.Reply{}, err
	}

	in := m.engine.Classify(ev, session)
	if in.Kind == bot.InputStepVoice {
		uri, err := m.media.Ingest(ctx, in.AttachmentRef)
		if err != nil {
			// Session stays exactly as it was; the user just retries.
			log.Printf("ingest voice for chat %d failed: %v", ev.ChatID, err)
			return m.engine.IngestFailedReply(), nil
		}
		in = bot.Input{Kind: bot.InputVoiceStored, Text: uri}
	}

	next, outcome := m.engine.Transition(*session, in)

	if outcome.Export {
		return m.runExport(ctx), nil
	}
	if outcome.Finalize {
		return m.finalize(ctx, &next, ev, outcome.Reply)
	}

	if outcome.Changed {
		if err := m.intake.SaveSession(ctx, &next); err != nil {
			return models.Reply{}, err
		}
		m.cache.cacheSession(&next)
	}
	return outcome.Reply, nil
}

func (m *Manager) loadSession(ctx context.Context, chatID int64) (*models.UserSession, error) {
	if session, ok := m.cache.loadSession(ctx, chatID); ok {
		return session, nil
	}
	session, err := m.intake.GetOrCreateSession(ctx, chatID)
	if err != nil {
		return nil, err
	}
	m.cache.cacheSession(session)
	return session, nil
}

// finalize persists the complaint record and then resets the session. The
// record insert is guarded by an idempotency key derived from the terminal
// event, so a retry after a crash between insert and reset cannot create a
// duplicate.
func (m *Manager) finalize(ctx context.Context, next *models.UserSession, ev models.Event, reply models.Reply) (models.Reply, error) {
	key := finalizeKey(ev, next)
	if m.guard.acquire(ctx, key) {
		record, err := bot.BuildComplaint(next, time.Now().UTC())
		if err != nil {
			// Should be unreachable via the transition table; log the
			// defect and recover by resetting the session.
			log.Printf("finalize for chat %d rejected: %v", ev.ChatID, err)
			m.guard.release(ctx, key)
			next.ResetFlow()
			if err := m.intake.SaveSession(ctx, next); err != nil {
				return models.Reply{}, err
			}
			m.cache.cacheSession(next)
			return m.engine.RestartReply(), nil
		}
		if _, err := m.intake.InsertComplaint(ctx, record); err != nil {
			m.guard.release(ctx, key)
			return models.Reply{}, err
		}
	} else {
		debugLog("[worker] duplicate finalize for chat %d suppressed", ev.ChatID)
	}

	next.ResetFlow()
	if err := m.intake.SaveSession(ctx, next); err != nil {
		return models.Reply{}, err
	}
	m.cache.cacheSession(next)
	return reply, nil
}

func (m *Manager) runExport(ctx context.Context) models.Reply {
	export, err := m.intake.ExportComplaintsCSV(ctx)
	if err != nil {
		if errors.Is(err, intake.ErrNoComplaints) {
			return m.engine.ExportEmptyReply()
		}
		log.Printf("export complaints failed: %v", err)
		return m.engine.ExportFailedReply()
	}
	url := strings.TrimRight(m.publicBaseURL, "/") + "/exports/" + export.FileName
	return m.engine.ExportReadyReply(url)
}
