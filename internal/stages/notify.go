package stages

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/skill-gap/internal/notify"
	"github.com/spigell/skill-gap/internal/pipeline"
)

const (
	NotifySubject = "Your Personalized Cover Letter & Interview Q&A Guide"

	notifyBody = "Hi %s,\n\nPlease find attached your auto-generated cover letter and interview Q&A guide.\n\nGood luck!"
)

// Notify mails the generated documents to the candidate.
type Notify struct {
	pipeline.Toggle

	mailer notify.Mailer
	logger *zap.Logger
}

func NewNotify(mailer notify.Mailer, log *zap.Logger) *Notify {
	return &Notify{mailer: mailer, logger: stageLogger(log, pipeline.ActionNotify)}
}

func (s *Notify) Name() string { return pipeline.ActionNotify.String() }

func (s *Notify) Requires() []string {
	return []string{pipeline.KeyUserEmail, pipeline.KeyResumeText}
}

func (s *Notify) Validate() error {
	if s.mailer == nil {
		return errors.New("notify needs a mailer")
	}
	return nil
}

func (s *Notify) Status() pipeline.Status {
	kind := ""
	if s.mailer != nil {
		kind = s.mailer.Kind()
	}
	return pipeline.Status{
		Name:     s.Name(),
		Enabled:  s.IsEnabled(),
		Reason:   s.Reason(),
		Requires: s.Requires(),
		Details:  map[string]string{"mailer": kind},
	}
}

type notifyInput struct {
	UserEmail   string `mapstructure:"user_email"`
	ResumeText  string `mapstructure:"resume_text"`
	CoverLetter string `mapstructure:"cover_letter"`
	InterviewQA string `mapstructure:"interview_qa"`
}

func (s *Notify) Run(ctx context.Context, state pipeline.State) (pipeline.State, error) {
	var in notifyInput
	if err := state.Decode(&in); err != nil {
		return nil, err
	}

	var attachments []notify.Attachment
	for _, doc := range []struct{ name, text string }{
		{name: "cover_letter.txt", text: in.CoverLetter},
		{name: "interview_qa.txt", text: in.InterviewQA},
	} {
		if strings.TrimSpace(doc.text) == "" {
			continue
		}
		attachments = append(attachments, notify.Attachment{
			Name:        doc.name,
			ContentType: "text/plain; charset=utf-8",
			Data:        []byte(doc.text),
		})
	}
	if len(attachments) == 0 {
		return nil, errors.New("notify: no documents to deliver")
	}

	msg := &notify.Message{
		To:          strings.TrimSpace(in.UserEmail),
		Subject:     NotifySubject,
		Body:        fmt.Sprintf(notifyBody, notify.CandidateName(in.ResumeText)),
		Attachments: attachments,
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return nil, fmt.Errorf("deliver documents: %w", err)
	}

	status := "sent via " + s.mailer.Kind()
	s.logger.Info("documents delivered", zap.String("to", msg.To), zap.Int("attachments", len(attachments)))
	return pipeline.State{pipeline.KeyDeliveryStatus: status}, nil
}
