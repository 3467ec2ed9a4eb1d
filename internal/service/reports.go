package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/evanmaskanazi/socialworkboard/internal/mail"
	"github.com/evanmaskanazi/socialworkboard/internal/models"
	"github.com/evanmaskanazi/socialworkboard/internal/queue"
	"github.com/evanmaskanazi/socialworkboard/internal/report"
)

const reportTypeWeekly = "weekly"

type ReportFile struct {
	Filename string
	Content  []byte
	Summary  report.Summary
	Client   models.Client
}

func parseWeek(week string) (report.Week, error) {
	w, err := report.ParseWeek(strings.TrimSpace(week))
	if err != nil {
		return report.Week{}, invalid("%s", err.Error())
	}
	return w, nil
}

// GenerateReport compiles the weekly workbook for one of the therapist's
// clients and records the generation.
func (s *Service) GenerateReport(ctx context.Context, therapistUserID, clientID, week string) (ReportFile, error) {
	w, err := parseWeek(week)
	if err != nil {
		return ReportFile{}, err
	}
	therapist, err := s.therapist(ctx, therapistUserID)
	if err != nil {
		return ReportFile{}, err
	}
	client, err := s.ownedClient(ctx, therapist, clientID)
	if err != nil {
		return ReportFile{}, err
	}

	start := w.Start()
	end := w.End()
	data := report.Data{ClientSerial: client.Serial, Week: w}
	checkins, err := s.Store.ListCheckins(ctx, client.ID, start, end)
	if err != nil {
		return ReportFile{}, err
	}
	if data.Checkins, err = s.decryptCheckins(ctx, checkins); err != nil {
		return ReportFile{}, err
	}
	if data.Goals, err = s.Store.ListGoals(ctx, client.ID, start); err != nil {
		return ReportFile{}, err
	}
	if data.Completions, err = s.Store.ListCompletions(ctx, client.ID, start, end); err != nil {
		return ReportFile{}, err
	}
	if data.Notes, err = s.Store.ListNotes(ctx, client.ID, start, start.AddDate(0, 0, 7)); err != nil {
		return ReportFile{}, err
	}

	content, summary, err := report.Render(data)
	if err != nil {
		return ReportFile{}, fmt.Errorf("render report: %w", err)
	}

	if raw, err := json.Marshal(summary); err != nil {
		log.Printf("report summary encode failed for client %s: %v", client.ID, err)
	} else if _, err := s.Store.LogReport(ctx, client.ID, therapist.ID, reportTypeWeekly, start, raw); err != nil {
		log.Printf("report log failed for client %s week %s: %v", client.ID, w, err)
	}

	return ReportFile{
		Filename: report.Filename(client.Serial, w),
		Content:  content,
		Summary:  summary,
		Client:   client,
	}, nil
}

// EmailReport mails the weekly workbook. With a queue configured the job is
// handed to the report worker and queued is true. An empty recipient means
// the therapist's own address.
func (s *Service) EmailReport(ctx context.Context, therapistUserID, clientID, week, recipient string) (queued bool, err error) {
	if s.Mailer == nil {
		return false, ErrMailDisabled
	}
	w, err := parseWeek(week)
	if err != nil {
		return false, err
	}
	therapist, err := s.therapist(ctx, therapistUserID)
	if err != nil {
		return false, err
	}
	if _, err := s.ownedClient(ctx, therapist, clientID); err != nil {
		return false, err
	}
	to, err := s.reportRecipient(ctx, therapistUserID, recipient)
	if err != nil {
		return false, err
	}

	if s.Queue != nil {
		job := queue.ReportJob{
			ClientID:        clientID,
			TherapistUserID: therapistUserID,
			Week:            w.String(),
			Recipient:       to,
			RequestedAt:     s.Now().UTC(),
		}
		if err := s.Queue.EnqueueReport(ctx, job); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, s.sendReport(ctx, therapistUserID, clientID, w.String(), to)
}

func (s *Service) reportRecipient(ctx context.Context, therapistUserID, recipient string) (string, error) {
	if strings.TrimSpace(recipient) != "" {
		addr, err := normalizeEmail(recipient)
		if err != nil {
			return "", invalid("recipient must be a valid email address")
		}
		return addr, nil
	}
	user, err := s.Store.GetUserByID(ctx, therapistUserID)
	if err != nil {
		return "", err
	}
	return user.Email, nil
}

// ProcessReportJob is the worker side of EmailReport. Ownership is checked
// again since the client may have been reassigned since the job was queued.
func (s *Service) ProcessReportJob(ctx context.Context, job queue.ReportJob) error {
	if s.Mailer == nil {
		return ErrMailDisabled
	}
	err := s.sendReport(ctx, job.TherapistUserID, job.ClientID, job.Week, job.Recipient)
	var verr *ValidationError
	if errors.As(err, &verr) || errors.Is(err, ErrClientNotFound) || errors.Is(err, ErrProfileNotFound) ||
		errors.Is(err, ErrAccountInactive) {
		log.Printf("discarding report job for client %s: %v", job.ClientID, err)
		return nil
	}
	return err
}

func (s *Service) sendReport(ctx context.Context, therapistUserID, clientID, week, to string) error {
	if s.Mailer == nil {
		return ErrMailDisabled
	}
	file, err := s.GenerateReport(ctx, therapistUserID, clientID, week)
	if err != nil {
		return err
	}
	msg := mail.Message{
		To:      to,
		Subject: fmt.Sprintf("Weekly report %s for client %s", file.Summary.Week, file.Client.Serial),
		Body: fmt.Sprintf("Attached is the weekly check-in report for client %s, week %s (starting %s).\n\nDays checked in: %d/7 (%s)\n",
			file.Client.Serial, file.Summary.Week, file.Summary.WeekStart, file.Summary.DaysCheckedIn, file.Summary.CompletionBucket),
		Attachments: []mail.Attachment{{
			Filename:    file.Filename,
			ContentType: report.ContentType,
			Data:        file.Content,
		}},
	}
	return s.Mailer.Send(ctx, msg)
}
