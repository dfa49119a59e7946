package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"adforge/internal/domain"
	"adforge/internal/events"
	"adforge/internal/prompt"
	"adforge/internal/providers"
)

const terminalWriteAttempts = 3

// runJob drives one job to a terminal state. Steps run strictly in order and
// every failure ends as a failed job with a non-empty message.
func (o *Orchestrator) runJob(ctx context.Context, b *batch, job domain.Job) {
	log := o.logger.With().
		Str("batch_id", b.id).
		Str("job_id", job.ID).
		Str("format", string(job.Format)).
		Logger()

	spec, ok := domain.SpecFor(job.Format)
	if !ok {
		o.fail(ctx, job, "", fmt.Errorf("%w: unsupported format %q", domain.ErrInvalidRequest, job.Format))
		return
	}

	design := o.designSystem(ctx, b)
	p := prompt.BuildCreativePrompt(prompt.Input{
		Spec:       spec,
		Design:     design,
		Copy:       b.req.Copy,
		Brief:      b.req.Brief,
		References: b.references,
	})

	imageIn := providers.ImageInput{
		Prompt:         p.Text,
		NegativePrompt: p.Negative,
		AspectRatio:    spec.AspectRatio,
		Width:          spec.Width,
		Height:         spec.Height,
		RequestID:      job.ID,
	}
	handle, err := providers.Submit(ctx, "image", o.cfg.ImagePolicy, &log, func(ctx context.Context) (providers.Handle, error) {
		return o.images.SubmitImage(ctx, imageIn)
	})
	if err != nil {
		o.fail(ctx, job, "", fmt.Errorf("submit image: %w", err))
		return
	}

	processing, err := o.transition(ctx, job.ID, domain.JobUpdate{Status: domain.JobStatusProcessing})
	if err != nil {
		log.Error().Err(err).Msg("orchestrator: could not mark job processing")
		o.fail(ctx, job, "", fmt.Errorf("record processing: %w", err))
		return
	}
	job = processing
	log.Debug().Str("handle", handle.String()).Msg("orchestrator: image submitted")

	res, err := providers.Await(ctx, o.images, handle, o.cfg.ImagePolicy, &log)
	if err != nil {
		o.fail(ctx, job, "", fmt.Errorf("image generation: %w", err))
		return
	}
	imageURL, err := providers.Result(res)
	if err != nil {
		o.fail(ctx, job, "", fmt.Errorf("image generation: %w", err))
		return
	}

	accent := strings.TrimSpace(b.req.Copy.AccentColor)
	if accent == "" {
		accent = design.Accent()
	}
	overlayIn := providers.OverlayInput{
		TemplateID:    o.cfg.Templates[job.Format],
		BackgroundURL: imageURL,
		Eyebrow:       b.req.Copy.Eyebrow,
		Headline:      b.req.Copy.Headline,
		CTA:           b.req.Copy.CTA,
		AccentColor:   accent,
		Region:        spec.TextRegion(),
		Width:         spec.Width,
		Height:        spec.Height,
		RequestID:     job.ID,
	}
	overlayHandle, err := providers.Submit(ctx, "overlay", o.cfg.OverlayPolicy, &log, func(ctx context.Context) (providers.Handle, error) {
		return o.overlays.SubmitOverlay(ctx, overlayIn)
	})
	if err != nil {
		o.fail(ctx, job, imageURL, fmt.Errorf("submit overlay: %w", err))
		return
	}
	res, err = providers.Await(ctx, o.overlays, overlayHandle, o.cfg.OverlayPolicy, &log)
	if err != nil {
		o.fail(ctx, job, imageURL, fmt.Errorf("overlay rendering: %w", err))
		return
	}
	resultURL, err := providers.Result(res)
	if err != nil {
		o.fail(ctx, job, imageURL, fmt.Errorf("overlay rendering: %w", err))
		return
	}

	if _, err := o.settle(ctx, job.ID, domain.JobUpdate{
		Status:    domain.JobStatusCompleted,
		ImageURL:  imageURL,
		ResultURL: resultURL,
	}); err != nil {
		log.Error().Err(err).Msg("orchestrator: could not mark job completed")
		o.fail(ctx, job, imageURL, fmt.Errorf("record completion: %w", err))
		return
	}
	log.Info().Str("result_url", resultURL).Msg("orchestrator: job completed")
}

// fail records err on the job. Provider failures keep the provider's own
// text so callers see exactly what went wrong upstream.
func (o *Orchestrator) fail(ctx context.Context, job domain.Job, imageURL string, err error) {
	msg := domain.FailureMessage(err)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		msg = "interrupted by shutdown: " + msg
	}
	updated, terr := o.settle(ctx, job.ID, domain.JobUpdate{
		Status:       domain.JobStatusFailed,
		ImageURL:     imageURL,
		ErrorMessage: msg,
	})
	if terr != nil {
		o.logger.Error().Err(terr).
			Str("job_id", job.ID).
			Str("cause", msg).
			Msg("orchestrator: could not mark job failed")
		return
	}
	o.logger.Warn().Err(err).
		Str("batch_id", updated.BatchID).
		Str("job_id", updated.ID).
		Str("format", string(updated.Format)).
		Msg("orchestrator: job failed")
}

// settle writes a terminal update, retrying store errors a few times. A
// rejected transition or unknown job is returned at once.
func (o *Orchestrator) settle(ctx context.Context, id string, update domain.JobUpdate) (domain.Job, error) {
	var err error
	for attempt := 1; attempt <= terminalWriteAttempts; attempt++ {
		var job domain.Job
		if job, err = o.transition(ctx, id, update); err == nil {
			return job, nil
		}
		if errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, domain.ErrNotFound) {
			return domain.Job{}, err
		}
		if attempt < terminalWriteAttempts {
			time.Sleep(time.Duration(attempt) * o.retryDelay)
		}
	}
	return domain.Job{}, err
}

// transition writes through the store even after shutdown began so that no
// job is left without a terminal state.
func (o *Orchestrator) transition(ctx context.Context, id string, update domain.JobUpdate) (domain.Job, error) {
	job, err := o.store.Transition(context.WithoutCancel(ctx), id, update)
	if err != nil {
		return domain.Job{}, err
	}
	o.bus.Publish(events.JobEvent{Type: events.TypeFor(job.Status), Job: job, At: job.UpdatedAt})
	return job, nil
}
