package scheduler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/runnerr0/codepulse/internal/api"
	"github.com/runnerr0/codepulse/internal/storage"
)

func (s *Scheduler) focused() bool {
	return s.focus == nil || s.focus.Focused()
}

func (s *Scheduler) heartbeat(reason string) {
	if err := s.backend.SendHeartbeat(s.ctx, reason); err != nil {
		s.log.Debug().Err(err).Str("reason", reason).Msg("heartbeat failed")
		return
	}
	s.log.Debug().Str("reason", reason).Msg("heartbeat sent")
}

// hourly rolls the summary over at a day change, then sends the HOURLY
// heartbeat and refreshes the status line while the host is focused.
func (s *Scheduler) hourly() {
	s.newDayCheck()
	if !s.focused() {
		return
	}
	if err := s.backend.Ping(s.ctx); err == nil {
		s.heartbeat(api.HeartbeatHourly)
	}
	s.refresh()
}

func (s *Scheduler) newDayCheck() {
	if s.dayCheck == nil {
		return
	}
	rolled, err := s.dayCheck.NewDayCheck(s.ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("new day check failed")
		return
	}
	if rolled {
		s.log.Info().Msg("new day started, session summary rolled over")
	}
}

func (s *Scheduler) refresh() {
	if s.refresher == nil {
		return
	}
	if _, err := s.refresher.UpdateStatusBarWithSummaryData(s.ctx); err != nil {
		s.log.Debug().Err(err).Msg("status refresh failed")
	}
}

func (s *Scheduler) flushTask() {
	if _, err := s.FlushOffline(s.ctx); err != nil {
		s.log.Info().Err(err).Msg("offline flush failed, payloads kept")
	}
}

// FlushOffline uploads every buffered payload. An empty buffer is a no-op.
// The buffer stays locked for the whole upload, so payloads recorded by
// other processes meanwhile wait and are kept. On failure nothing is
// removed. It returns the number of payloads sent.
func (s *Scheduler) FlushOffline(ctx context.Context) (int, error) {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	sent := false
	n, err := s.buffer.Drain(ctx, func(ctx context.Context, payloads []json.RawMessage) error {
		sendErr := s.backend.SendBatch(ctx, payloads)
		s.recordFlush(ctx, len(payloads), sendErr)
		if sendErr != nil {
			return fmt.Errorf("send batch: %w", sendErr)
		}
		sent = true
		return nil
	})
	if err != nil {
		if sent {
			return n, fmt.Errorf("clear flushed payloads: %w", err)
		}
		return 0, err
	}
	if !sent {
		return 0, nil
	}

	if err := s.store.Set(storage.KeyLastFlushUTC, s.clock.Now().Unix()); err != nil {
		s.log.Warn().Err(err).Msg("record last flush")
	}
	if s.flushLog != nil {
		if err := s.flushLog.MarkSynced(ctx); err != nil {
			s.log.Warn().Err(err).Msg("mark history synced")
		}
	}
	s.log.Info().Int("payloads", n).Msg("offline payloads flushed")
	return n, nil
}

func (s *Scheduler) recordFlush(ctx context.Context, n int, sendErr error) {
	if s.flushLog == nil {
		return
	}
	rec := storage.FlushRecord{Timestamp: s.clock.Now(), Payloads: n, OK: sendErr == nil}
	if sendErr != nil {
		rec.Detail = sendErr.Error()
	}
	if err := s.flushLog.RecordFlush(ctx, rec); err != nil {
		s.log.Warn().Err(err).Msg("record flush")
	}
}

// sessionCheck recreates the identity when the session file or credential
// disappeared while running, then refreshes the user and flushes.
func (s *Scheduler) sessionCheck() {
	s.checkMu.Lock()
	defer s.checkMu.Unlock()

	if s.store.Exists() && s.store.JWT() != "" {
		return
	}
	if err := s.backend.Ping(s.ctx); err != nil {
		s.log.Debug().Err(err).Msg("session file missing, backend unreachable")
		return
	}

	s.setState(Uninitialized)
	s.log.Info().Msg("session file missing, recreating identity")

	s.setState(AwaitingIdentity)
	jwt, err := s.backend.CreateAnonymousUser(s.ctx, timezone(s.clock.Now()))
	if err != nil {
		s.log.Warn().Err(err).Msg("recreate anonymous user failed")
		s.setState(Uninitialized)
		return
	}
	if err := s.store.Set(storage.KeyJWT, jwt); err != nil {
		s.log.Error().Err(err).Msg("persist credential")
		s.setState(Uninitialized)
		return
	}
	s.setState(Active)

	s.refreshUser()
	s.flushTask()
}

// userStatus looks up the account name while the user is still anonymous.
func (s *Scheduler) userStatus() {
	if !s.focused() || s.store.Name() != "" {
		return
	}
	s.refreshUser()
}

func (s *Scheduler) refreshUser() {
	u, err := s.backend.UserStatus(s.ctx)
	if err != nil {
		s.log.Debug().Err(err).Msg("user status failed")
		return
	}
	if !u.Registered || u.Name == "" {
		return
	}
	if err := s.store.Set(storage.KeyName, u.Name); err != nil {
		s.log.Warn().Err(err).Msg("persist user name")
		return
	}
	s.log.Info().Str("name", u.Name).Msg("registered user detected")
	s.refresh()
}

// liveshareTick updates the collaboration minutes while the host is focused.
func (s *Scheduler) liveshareTick() {
	if s.liveshare == nil || !s.focused() || !s.liveshare.Active() {
		return
	}
	if err := s.liveshare.UpdateTime(); err != nil {
		s.log.Warn().Err(err).Msg("update liveshare minutes")
	}
}
