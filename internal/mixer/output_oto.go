package mixer

import (
	"io"
	"log/slog"
	"sync"

	"github.com/ebitengine/oto/v3"
)

// oto allows a single context per process; it is created on first use and
// reused by later outputs at the same rate.
var (
	otoMu   sync.Mutex
	otoCtx  *oto.Context
	otoRate int
)

// otoOutput plays the monitor stream through oto.
type otoOutput struct {
	logger *slog.Logger

	mu     sync.Mutex
	player *oto.Player
}

func newOtoOutput(logger *slog.Logger) *otoOutput {
	return &otoOutput{logger: logger.With("component", "monitor_output", "backend", BackendOto)}
}

func (o *otoOutput) Name() string { return BackendOto }

func (o *otoOutput) Start(src io.Reader, sampleRate int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player != nil {
		return nil
	}

	ctx, err := sharedOtoContext(sampleRate, o.logger)
	if err != nil {
		return err
	}

	o.player = ctx.NewPlayer(src)
	o.player.Play()
	o.logger.Info("monitor output started", "sample_rate", sampleRate)
	return nil
}

func sharedOtoContext(sampleRate int, logger *slog.Logger) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		if otoRate != sampleRate {
			logger.Warn("oto context already open at a different rate, reusing it",
				"open_rate", otoRate, "requested_rate", sampleRate)
		}
		return otoCtx, nil
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: WAVChannels,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return nil, audioSourceError(err, "init_context")
	}
	<-ready

	otoCtx = ctx
	otoRate = sampleRate
	return ctx, nil
}

func (o *otoOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player == nil {
		return nil
	}
	err := o.player.Close()
	o.player = nil
	o.logger.Info("monitor output stopped")
	if err != nil {
		return audioSourceError(err, "close_player")
	}
	return nil
}
