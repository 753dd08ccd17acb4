package attendance

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"gate-ticketing/internal/kafka"
	"gate-ticketing/internal/logger"
	"gate-ticketing/internal/metrics"
	"gate-ticketing/internal/models"
)

// ScanOutcome is the terminal classification of one QR scan.
type ScanOutcome string

const (
	ScanSuccess          ScanOutcome = "success"
	ScanAlreadyCheckedIn ScanOutcome = "already_checked_in"
	ScanUnpaid           ScanOutcome = "unpaid"
	ScanNotFound         ScanOutcome = "not_found"
	ScanError            ScanOutcome = "error"
)

// ScanResult is everything the gate UI needs to render after one scan.
type ScanResult struct {
	Outcome     ScanOutcome      `json:"outcome"`
	Code        string           `json:"code"`
	Attendee    *models.Attendee `json:"attendee,omitempty"`
	CheckedInAt *time.Time       `json:"checked_in_at,omitempty"`
	CheckedInBy string           `json:"checked_in_by,omitempty"`
	Message     string           `json:"message"`
}

// Store is the persistence surface for check-ins.
type Store interface {
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetAttendanceByOrderID(ctx context.Context, orderID string) (*models.Attendance, error)
	CreateAttendance(ctx context.Context, rec models.Attendance) error
	ListAttendance(ctx context.Context, offset, limit int) ([]models.Attendance, int, error)
}

// EventPublisher streams check-in events for downstream consumers.
type EventPublisher interface {
	Publish(topic string, key string, value []byte) error
}

// Service records attendance against paid orders.
type Service struct {
	Store  Store
	Events EventPublisher
	Logger *logger.Logger
}

func NewService(store Store, events EventPublisher, log *logger.Logger) *Service {
	return &Service{Store: store, Events: events, Logger: log}
}

// Scan resolves a QR code to one of four terminal outcomes. A ticket that
// was already checked in reports the original timestamp and operator, not
// the current scan's.
func (s *Service) Scan(ctx context.Context, rawCode, operator string) *ScanResult {
	code := strings.TrimSpace(rawCode)

	if _, err := uuid.Parse(code); err != nil {
		s.Logger.LogScan(string(ScanNotFound), code)
		metrics.TicketScansTotal.WithLabelValues(string(ScanNotFound)).Inc()
		return &ScanResult{
			Outcome: ScanNotFound,
			Code:    code,
			Message: "Ticket not found",
		}
	}

	order, err := s.Store.GetOrderByID(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.Logger.LogScan(string(ScanNotFound), code)
			metrics.TicketScansTotal.WithLabelValues(string(ScanNotFound)).Inc()
			return &ScanResult{
				Outcome: ScanNotFound,
				Code:    code,
				Message: "Ticket not found",
			}
		}
		s.Logger.Error("SCAN", fmt.Sprintf("Failed to look up ticket %s: %v", code, err))
		metrics.TicketScansTotal.WithLabelValues(string(ScanError)).Inc()
		return &ScanResult{
			Outcome: ScanError,
			Code:    code,
			Message: "Scan failed, try again",
		}
	}

	attendee := &models.Attendee{
		Name:      order.Name,
		Email:     order.Email,
		NIM:       order.NIM,
		TierLabel: order.TierLabel,
	}

	if order.Status != models.OrderPaid {
		s.Logger.LogScan(string(ScanUnpaid), code)
		metrics.TicketScansTotal.WithLabelValues(string(ScanUnpaid)).Inc()
		return &ScanResult{
			Outcome:  ScanUnpaid,
			Code:     code,
			Attendee: attendee,
			Message:  fmt.Sprintf("Ticket is not paid (status: %s)", order.Status),
		}
	}

	existing, err := s.Store.GetAttendanceByOrderID(ctx, order.ID)
	if err == nil {
		s.Logger.LogScan(string(ScanAlreadyCheckedIn), code)
		metrics.TicketScansTotal.WithLabelValues(string(ScanAlreadyCheckedIn)).Inc()
		return &ScanResult{
			Outcome:     ScanAlreadyCheckedIn,
			Code:        code,
			Attendee:    attendee,
			CheckedInAt: &existing.CheckedInAt,
			CheckedInBy: existing.CheckedInBy,
			Message:     "Ticket already checked in",
		}
	}
	if !errors.Is(err, sql.ErrNoRows) {
		s.Logger.Error("SCAN", fmt.Sprintf("Failed to read attendance for %s: %v", code, err))
		metrics.TicketScansTotal.WithLabelValues(string(ScanError)).Inc()
		return &ScanResult{
			Outcome: ScanError,
			Code:    code,
			Message: "Scan failed, try again",
		}
	}

	if operator == "" {
		operator = "system"
	}

	now := time.Now()
	rec := models.Attendance{
		ID:           uuid.New().String(),
		OrderID:      order.ID,
		TicketCode:   code,
		AttendeeName: order.Name,
		CheckedInAt:  now,
		CheckedInBy:  operator,
	}
	if err := s.Store.CreateAttendance(ctx, rec); err != nil {
		s.Logger.Error("SCAN", fmt.Sprintf("Failed to record check-in for %s: %v", code, err))
		metrics.TicketScansTotal.WithLabelValues(string(ScanError)).Inc()
		return &ScanResult{
			Outcome: ScanError,
			Code:    code,
			Message: "Scan failed, try again",
		}
	}

	s.Logger.LogScan(string(ScanSuccess), code)
	metrics.TicketScansTotal.WithLabelValues(string(ScanSuccess)).Inc()
	s.publish(rec)

	return &ScanResult{
		Outcome:     ScanSuccess,
		Code:        code,
		Attendee:    attendee,
		CheckedInAt: &now,
		CheckedInBy: operator,
		Message:     "Checked in",
	}
}

// List returns a page of check-ins, newest first, with the total count.
func (s *Service) List(ctx context.Context, offset, limit int) ([]models.Attendance, int, error) {
	return s.Store.ListAttendance(ctx, offset, limit)
}

func (s *Service) publish(rec models.Attendance) {
	if s.Events == nil {
		return
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Failed to marshal check-in event: %v", err))
		return
	}
	if err := s.Events.Publish(kafka.TopicAttendanceCheckedIn, rec.OrderID, payload); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish check-in event: %v", err))
	}
}
