package playbackmodule

import "context"

// OnLifecycleSignal reconciles playback after a host lifecycle transition.
// Hidden and blur snapshot the current intent; visible and focus compare it
// against what the output is actually doing and repair the gap, because
// some platforms silently stop audio while the app is backgrounded.
func (e *Engine) OnLifecycleSignal(ctx context.Context, reason LifecycleReason) {
	switch reason {
	case ReasonHidden, ReasonBlur:
		e.mu.Lock()
		e.lastKnownShouldBePlaying = e.desiredPlaying
		e.mu.Unlock()
		return

	case ReasonVisible, ReasonFocus:
		e.mu.Lock()
		shouldPlay := e.lastKnownShouldBePlaying
		e.mu.Unlock()

		if !shouldPlay {
			return
		}
		if e.deps.Output.Playing() {
			return
		}
		if !e.deps.Output.HasSource() {
			e.logger.Debug("lifecycle resume skipped, no source loaded", "reason", reason)
			return
		}

		// Single repair attempt. A platform block inside startPlayback
		// clears lastKnownShouldBePlaying, so a failed resume does not
		// retrigger on the next signal.
		e.logger.Debug("lifecycle resume", "reason", reason)
		if err := e.startPlayback(ctx); err != nil {
			e.logger.Warn("lifecycle resume failed", "reason", reason, "error", err)
		}
	}
}
