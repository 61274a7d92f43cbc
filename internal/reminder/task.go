package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/virtual-office/internal/billing"
	"github.com/noah-isme/virtual-office/internal/notify"
	"github.com/noah-isme/virtual-office/internal/obs"
	"github.com/noah-isme/virtual-office/internal/pricing"
)

const (
	// QueueDefault is the asynq queue reminders run on.
	QueueDefault = "default"
	// TaskDueReminder notifies clients about invoices due soon.
	TaskDueReminder = "billing:due-reminder"
)

// Payload parameterises one reminder run.
type Payload struct {
	Usernames  []string `json:"usernames"`
	WindowDays int      `json:"windowDays"`
}

// NewDueReminderTask builds the asynq task for a reminder run.
func NewDueReminderTask(p Payload) (*asynq.Task, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDueReminder, data), nil
}

// Sender stores notifications.
type Sender interface {
	Send(ctx context.Context, n notify.Notification) (notify.Notification, error)
}

// Job turns due-soon invoices into billing notifications. Each invoice and
// due date is only announced once per DedupTTL.
type Job struct {
	Source   billing.Source
	Sender   Sender
	Client   *redis.Client
	Prefix   string
	DedupTTL time.Duration
	Log      zerolog.Logger
	Now      func() time.Time
}

// Result summarises a run.
type Result struct {
	Due     int `json:"due"`
	Created int `json:"created"`
}

func (j *Job) now() time.Time {
	if j.Now != nil {
		return j.Now().UTC()
	}
	return time.Now().UTC()
}

// Handle processes TaskDueReminder tasks.
func (j *Job) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Source == nil || j.Sender == nil {
		return errors.New("due reminder: handler not configured")
	}
	var p Payload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("due reminder payload: %v: %w", err, asynq.SkipRetry)
	}
	if len(p.Usernames) == 0 {
		j.Log.Warn().Msg("due reminder without recipients")
		return nil
	}
	res, err := j.Run(ctx, p)
	if err != nil {
		return err
	}
	j.Log.Info().Int("due", res.Due).Int("created", res.Created).Msg("due reminders processed")
	return nil
}

// Run sends one notification per invoice due within the window.
func (j *Job) Run(ctx context.Context, p Payload) (Result, error) {
	if p.WindowDays <= 0 {
		p.WindowDays = DefaultWindowDays
	}
	outstanding, _, err := j.Source.Invoices(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load invoices: %w", err)
	}
	now := j.now()
	due := DueSoon(FromInvoices("", "", outstanding), now, p.WindowDays)
	res := Result{Due: len(due)}
	for _, d := range due {
		first, err := j.claim(ctx, d)
		if err != nil {
			return res, err
		}
		if !first {
			continue
		}
		total := pricing.InvoiceTotals(d.Amount).Total
		_, err = j.Sender.Send(ctx, notify.Notification{
			Kind:      notify.KindBilling,
			Title:     fmt.Sprintf("Invoice %s is due soon", d.InvoiceID),
			Body:      fmt.Sprintf("%s is due on %s.", pricing.FormatGBP(total), d.DueAt.Format("02 Jan 2006")),
			Target:    notify.TargetGroup,
			Usernames: p.Usernames,
			SentBy:    "Billing",
		})
		if err != nil {
			j.release(ctx, d)
			return res, fmt.Errorf("send reminder for %s: %w", d.InvoiceID, err)
		}
		res.Created++
		if obs.RemindersCreatedTotal != nil {
			obs.RemindersCreatedTotal.Inc()
		}
	}
	return res, nil
}

// claim reports whether this is the first reminder for the invoice's due date.
func (j *Job) claim(ctx context.Context, d DueClient) (bool, error) {
	if j.Client == nil {
		return true, nil
	}
	ttl := j.DedupTTL
	if ttl <= 0 {
		ttl = 8 * 24 * time.Hour
	}
	ok, err := j.Client.SetNX(ctx, j.claimKey(d), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim reminder: %w", err)
	}
	return ok, nil
}

// release drops a claim whose notification was never stored so a retry can
// send it.
func (j *Job) release(ctx context.Context, d DueClient) {
	if j.Client == nil {
		return
	}
	if err := j.Client.Del(context.WithoutCancel(ctx), j.claimKey(d)).Err(); err != nil {
		j.Log.Warn().Err(err).Str("invoice_id", d.InvoiceID).Msg("release reminder claim")
	}
}

func (j *Job) claimKey(d DueClient) string {
	return j.Prefix + "reminder:" + d.InvoiceID + ":" + d.DueAt.Format("2006-01-02")
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueue submits a reminder run.
func Enqueue(ctx context.Context, q Enqueuer, p Payload) (*asynq.TaskInfo, error) {
	task, err := NewDueReminderTask(p)
	if err != nil {
		return nil, err
	}
	return q.EnqueueContext(ctx, task, asynq.Queue(QueueDefault), asynq.MaxRetry(3), asynq.Timeout(time.Minute))
}
