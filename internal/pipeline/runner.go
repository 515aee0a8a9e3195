// Package pipeline drives one topic through the generation, media resolution,
// and publication stages, persisting progress to the content cache so an
// interrupted run resumes from the last durable stage.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"pressline/internal/cache"
	"pressline/internal/config"
	"pressline/internal/content"
	"pressline/internal/logging"
	"pressline/internal/services"
	"pressline/internal/services/generator"
	"pressline/internal/services/publisher"
	"pressline/internal/topic"
)

// Generator produces an article draft for a topic.
type Generator interface {
	Generate(ctx context.Context, rec topic.Record) (generator.Draft, error)
}

// MediaResolver finds media for a topic.
type MediaResolver interface {
	Resolve(ctx context.Context, topicText, category string) (cache.MediaReference, error)
}

// Publisher pushes a finished post to the CMS, updating in place when
// remotePostID names an existing post.
type Publisher interface {
	Publish(ctx context.Context, post publisher.Post, remotePostID string) (string, error)
}

// Status classifies the outcome of a single topic run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Result describes what happened to one topic.
type Result struct {
	Topic        string
	Fingerprint  string
	Status       Status
	Stage        cache.Stage
	RemotePostID string
	Attempts     int
	Reason       string
}

// Runner executes the per-topic state machine.
type Runner struct {
	store     *cache.Store
	generator Generator
	media     MediaResolver
	publisher Publisher
	retry     retryPolicy
	logger    *slog.Logger
}

// NewRunner wires a runner from its collaborators.
func NewRunner(store *cache.Store, gen Generator, media MediaResolver, pub Publisher, cfg config.Pipeline, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		store:     store,
		generator: gen,
		media:     media,
		publisher: pub,
		retry:     newRetryPolicy(cfg.RetryAttempts, cfg.RetryBaseDelayMS),
		logger:    logger,
	}
}

// Run processes one topic to completion or failure. Item-level failures are
// reported in the Result; the error return is reserved for cache faults,
// which poison the whole run and must stop it.
func (r *Runner) Run(ctx context.Context, rec topic.Record) (Result, error) {
	result := Result{Topic: rec.Topic}

	if err := rec.Validate(); err != nil {
		result.Status = StatusFailed
		result.Reason = err.Error()
		return result, nil
	}

	fingerprint := rec.Fingerprint()
	result.Fingerprint = fingerprint
	ctx = services.WithTopic(ctx, rec.Topic)
	log := r.logger.With(
		logging.String(logging.FieldTopic, rec.Topic),
		logging.String(logging.FieldFingerprint, shortFingerprint(fingerprint)),
	)

	entry, err := r.store.Get(ctx, fingerprint)
	if err != nil {
		return result, err
	}

	if entry != nil && entry.Stage == cache.StagePublished {
		result.Status = StatusSkipped
		result.Stage = cache.StagePublished
		result.RemotePostID = formatPostID(entry.RemotePostID)
		log.Info("topic already published, skipping",
			logging.String("remote_post_id", result.RemotePostID))
		return result, nil
	}

	stage := cache.Stage("")
	if entry != nil {
		stage = entry.Stage
		log.Info("resuming from cached stage", logging.String(logging.FieldStage, string(stage)))
	}

	if stage == "" {
		entry, err = r.generate(ctx, rec, fingerprint, log, &result)
		if err != nil {
			return result, err
		}
		if entry == nil {
			return result, nil
		}
		stage = entry.Stage
	}

	if stage == cache.StageGenerated {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		entry, err = r.resolveMedia(ctx, rec, fingerprint, log, &result)
		if err != nil {
			return result, err
		}
		stage = entry.Stage
	}

	if stage == cache.StageMediaResolved {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		entry, err = r.publish(ctx, rec, fingerprint, entry, log, &result)
		if err != nil {
			return result, err
		}
		if entry == nil {
			return result, nil
		}
	}

	result.Status = StatusSuccess
	result.Stage = cache.StagePublished
	result.RemotePostID = formatPostID(entry.RemotePostID)
	return result, nil
}

// generate runs the generation stage. On success the entry is advanced to
// generated; on failure no cache row is written and the nil entry signals the
// caller to stop.
func (r *Runner) generate(ctx context.Context, rec topic.Record, fingerprint string, log *slog.Logger, result *Result) (*cache.Entry, error) {
	var draft generator.Draft
	attempts, err := r.retry.run(ctx, func(ctx context.Context) error {
		var genErr error
		draft, genErr = r.generator.Generate(ctx, rec)
		return genErr
	})
	result.Attempts += attempts
	if err != nil {
		if isCancellation(err) {
			return nil, err
		}
		result.Status = StatusFailed
		result.Reason = "generation failed: " + err.Error()
		log.Error("generation failed", logging.Error(err), logging.Int(logging.FieldAttempt, attempts))
		return nil, nil
	}

	// A finished stage is recorded even when the run is being canceled, so
	// paid generation work is never re-bought.
	entry, err := r.store.Advance(context.WithoutCancel(ctx), fingerprint, cache.StageGenerated, func(e *cache.Entry) {
		e.Topic = rec.Topic
		e.Title = draft.Title
		e.ArticleBody = draft.Body
		e.AttemptCount += attempts
	})
	if err != nil {
		return nil, err
	}
	log.Info("article generated",
		logging.String("title", draft.Title),
		logging.Int("word_count", draft.WordCount),
		logging.Int(logging.FieldAttempt, attempts))
	return entry, nil
}

// resolveMedia runs the media stage. Media is not allowed to sink a post:
// when every attempt fails the entry still advances, carrying no media.
func (r *Runner) resolveMedia(ctx context.Context, rec topic.Record, fingerprint string, log *slog.Logger, result *Result) (*cache.Entry, error) {
	var ref cache.MediaReference
	attempts, err := r.retry.run(ctx, func(ctx context.Context) error {
		var resolveErr error
		ref, resolveErr = r.media.Resolve(ctx, rec.Topic, rec.Category)
		return resolveErr
	})
	result.Attempts += attempts
	if err != nil {
		if isCancellation(err) {
			return nil, err
		}
		log.Warn("media resolution failed, continuing without media",
			logging.Error(err), logging.Int(logging.FieldAttempt, attempts))
		ref = cache.MediaReference{}
	}

	entry, err := r.store.Advance(context.WithoutCancel(ctx), fingerprint, cache.StageMediaResolved, func(e *cache.Entry) {
		_ = e.SetMedia(ref)
		e.AttemptCount += attempts
	})
	if err != nil {
		return nil, err
	}
	if !ref.IsZero() {
		log.Info("media resolved",
			logging.Bool("has_image", ref.ImageURL != ""),
			logging.Bool("has_video", ref.VideoRef != ""))
	}
	return entry, nil
}

// publish runs the publication stage. A remote post ID recorded by an earlier
// partially-failed publish is reused as an update target so the CMS never
// accumulates duplicates.
func (r *Runner) publish(ctx context.Context, rec topic.Record, fingerprint string, entry *cache.Entry, log *slog.Logger, result *Result) (*cache.Entry, error) {
	post, err := r.buildPost(rec, entry)
	if err != nil {
		result.Status = StatusFailed
		result.Reason = "assemble post: " + err.Error()
		log.Error("assembling post failed", logging.Error(err))
		return nil, nil
	}

	remoteID := formatPostID(entry.RemotePostID)
	var postID string
	attempts, err := r.retry.run(ctx, func(ctx context.Context) error {
		var pubErr error
		postID, pubErr = r.publisher.Publish(ctx, post, remoteID)
		return pubErr
	})
	result.Attempts += attempts
	if err != nil {
		if isCancellation(err) {
			return nil, err
		}
		result.Status = StatusFailed
		result.Reason = "publish failed: " + err.Error()
		log.Error("publish failed", logging.Error(err), logging.Int(logging.FieldAttempt, attempts))
		return nil, nil
	}

	numericID, err := strconv.ParseInt(postID, 10, 64)
	if err != nil || numericID <= 0 {
		// Recording a bogus ID would strand future updates on a new post.
		result.Status = StatusFailed
		result.Reason = fmt.Sprintf("publish returned unusable post id %q", postID)
		log.Error("publish returned unusable post id", logging.String("remote_post_id", postID))
		return nil, nil
	}
	advanced, err := r.store.Advance(context.WithoutCancel(ctx), fingerprint, cache.StagePublished, func(e *cache.Entry) {
		e.RemotePostID = numericID
		e.AttemptCount += attempts
	})
	if err != nil {
		return nil, err
	}
	log.Info("post published",
		logging.String("remote_post_id", postID),
		logging.Int(logging.FieldAttempt, attempts))
	return advanced, nil
}

// buildPost renders the cached Markdown into the publishable HTML payload.
func (r *Runner) buildPost(rec topic.Record, entry *cache.Entry) (publisher.Post, error) {
	html, err := content.RenderHTML(entry.ArticleBody)
	if err != nil {
		return publisher.Post{}, err
	}

	ref, err := entry.Media()
	if err != nil {
		return publisher.Post{}, err
	}
	if ref.VideoRef != "" {
		html = content.EmbedVideo(html, ref.VideoRef)
	}

	excerpt, err := content.Excerpt(html, 40)
	if err != nil {
		excerpt = ""
	}

	var categories []string
	if rec.Category != "" {
		categories = []string{rec.Category}
	}
	return publisher.Post{
		Title:      entry.Title,
		HTML:       html,
		Excerpt:    excerpt,
		Categories: categories,
		Tags:       rec.Tags,
		Media:      ref,
	}, nil
}

func formatPostID(id int64) string {
	if id <= 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

func shortFingerprint(fingerprint string) string {
	if len(fingerprint) > 12 {
		return fingerprint[:12]
	}
	return fingerprint
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
