package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/signintech/gopdf"

	"medical-intake-agent/internal/consultation"
	"medical-intake-agent/internal/intake"
)

type TelegramClient interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, fileData []byte, fileName, caption string) error
}

var defaultFontPaths = []string{
	"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
}

// Service sends the intake handover to the doctor's Telegram chat. It implements
// consultation.HandoverNotifier.
type Service struct {
	tgClient     TelegramClient
	doctorChatID int64
	fontPaths    []string
	logger       zerolog.Logger
}

func NewService(tg TelegramClient, doctorChatID int64, logger zerolog.Logger) *Service {
	return &Service{
		tgClient:     tg,
		doctorChatID: doctorChatID,
		fontPaths:    defaultFontPaths,
		logger:       logger.With().Str("component", "report").Logger(),
	}
}

// NotifyHandover sends the SBAR report as a PDF. When no font is available to render it,
// the same summary goes out as a text message.
func (s *Service) NotifyHandover(ctx context.Context, c consultation.Consultation) error {
	if s.doctorChatID == 0 {
		return errors.New("doctor chat id is not configured")
	}
	caption := fmt.Sprintf("Intake handover %s (completeness %d%%)", shortID(c), c.Completeness())

	pdfData, err := s.RenderPDF(c)
	if err != nil {
		s.logger.Warn().Err(err).Str("consultation_id", c.ID.String()).Msg("pdf unavailable, sending text summary")
		return s.tgClient.SendMessage(ctx, s.doctorChatID, Summary(c))
	}

	fileName := fmt.Sprintf("handover_%s.pdf", c.ID.String())
	if err := s.tgClient.SendDocument(ctx, s.doctorChatID, pdfData, fileName, caption); err != nil {
		return fmt.Errorf("failed to send handover document: %w", err)
	}
	s.logger.Info().Str("consultation_id", c.ID.String()).Int("bytes", len(pdfData)).Msg("handover pdf sent")
	return nil
}

type section struct {
	title string
	lines []string
}

func sections(c consultation.Consultation) []section {
	r := c.Record
	h := r.Handover
	if h == nil {
		h = intake.BuildHandover(r)
	}

	patient := []string{"Consultation: " + c.ID.String()}
	if r.Vitals.Name != nil && *r.Vitals.Name != "" {
		patient = append(patient, "Name: "+*r.Vitals.Name)
	}
	if r.Vitals.Age != nil {
		patient = append(patient, fmt.Sprintf("Age: %d", *r.Vitals.Age))
	}
	if v := vitalsLine(r.Vitals); v != "" {
		patient = append(patient, v)
	}
	patient = append(patient, fmt.Sprintf("Completeness: %d%%", c.Completeness()))

	out := []section{
		{title: "Patient", lines: patient},
		{title: "Situation", lines: []string{h.Situation}},
		{title: "Background", lines: []string{h.Background}},
		{title: "Assessment", lines: []string{h.Assessment}},
		{title: "Recommendation", lines: []string{h.Recommendation}},
	}
	if len(r.Medications) > 0 || len(r.Allergies) > 0 {
		out = append(out, section{title: "Medications and allergies", lines: []string{
			"Medications: " + listOrNone(r.Medications),
			"Allergies: " + listOrNone(r.Allergies),
		}})
	}
	return out
}

// Summary is the plain-text form of the handover report.
func Summary(c consultation.Consultation) string {
	var b strings.Builder
	b.WriteString("Intake handover\n")
	for _, sec := range sections(c) {
		b.WriteString("\n" + strings.ToUpper(sec.title) + "\n")
		for _, l := range sec.lines {
			b.WriteString(l + "\n")
		}
	}
	return b.String()
}

// RenderPDF lays the handover out on A4 pages.
func (s *Service) RenderPDF(c consultation.Consultation) ([]byte, error) {
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.SetMargins(40, 40, 40, 40)
	pdf.AddPage()

	var fontErr error
	fontLoaded := false
	for _, path := range s.fontPaths {
		if err := pdf.AddTTFFont("DejaVu", path); err == nil {
			fontLoaded = true
			break
		} else {
			fontErr = err
		}
	}
	if !fontLoaded {
		return nil, fmt.Errorf("failed to load font for PDF: %w", fontErr)
	}

	if err := pdf.SetFont("DejaVu", "", 18); err != nil {
		return nil, err
	}
	pdf.Cell(nil, "Intake handover")
	pdf.Br(26)

	if err := pdf.SetFont("DejaVu", "", 10); err != nil {
		return nil, err
	}
	pdf.Cell(nil, "Generated: "+time.Now().Format("02.01.2006 15:04"))
	pdf.Br(20)

	for _, sec := range sections(c) {
		if err := pdf.SetFont("DejaVu", "", 13); err != nil {
			return nil, err
		}
		breakPage(&pdf)
		pdf.Cell(nil, sec.title)
		pdf.Br(16)

		if err := pdf.SetFont("DejaVu", "", 11); err != nil {
			return nil, err
		}
		for _, line := range sec.lines {
			wrapped, err := pdf.SplitText(line, 500)
			if err != nil {
				wrapped = []string{line}
			}
			for _, l := range wrapped {
				breakPage(&pdf)
				pdf.Cell(nil, l)
				pdf.Br(14)
			}
		}
		pdf.Br(8)
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func breakPage(pdf *gopdf.GoPdf) {
	if pdf.GetY() > 780 {
		pdf.AddPage()
	}
}

func vitalsLine(v intake.Vitals) string {
	var parts []string
	if t := v.Temperature; t != nil && t.Value != nil {
		parts = append(parts, fmt.Sprintf("Temp %.1f%s", *t.Value, unit(t.Unit)))
	}
	if w := v.Weight; w != nil && w.Value != nil {
		parts = append(parts, fmt.Sprintf("Weight %.1f%s", *w.Value, unit(w.Unit)))
	}
	if bp := v.BloodPressure; bp != nil && bp.Systolic != nil && bp.Diastolic != nil {
		parts = append(parts, fmt.Sprintf("BP %d/%d", *bp.Systolic, *bp.Diastolic))
	}
	if len(parts) == 0 {
		return ""
	}
	return "Vitals: " + strings.Join(parts, ", ")
}

func unit(u *string) string {
	if u == nil || *u == "" {
		return ""
	}
	return " " + *u
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "none reported"
	}
	return strings.Join(items, ", ")
}

func shortID(c consultation.Consultation) string {
	return c.ID.String()[:8]
}
