package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	contractx "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/contract"
	phonex "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/phone"
)

// Bookings keeps one active appointment per phone; a new booking replaces
// the old one (last write wins).
type Bookings struct {
	db *bun.DB
}

var _ contractx.BookingStore = (*Bookings)(nil)

func NewBookings(db *bun.DB) *Bookings {
	return &Bookings{db: db}
}

func (s *Bookings) Get(ctx context.Context, phone string) (*contractx.Booking, error) {
	row := new(bookingRow)
	err := s.db.NewSelect().Model(row).Where("phone = ?", phonex.Normalize(phone)).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select booking: %w", err)
	}
	return &contractx.Booking{
		Phone:           row.Phone,
		AppointmentTime: row.AppointmentTime,
		RealtorID:       row.RealtorID,
		CalendarID:      row.CalendarID,
		EventID:         row.EventID,
	}, nil
}

func (s *Bookings) Upsert(ctx context.Context, b *contractx.Booking) error {
	if b == nil {
		return errors.New("nil booking")
	}
	row := &bookingRow{
		Phone:           phonex.Normalize(b.Phone),
		AppointmentTime: b.AppointmentTime,
		RealtorID:       b.RealtorID,
		CalendarID:      b.CalendarID,
		EventID:         b.EventID,
	}
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (phone) DO UPDATE").
		Set("appointment_time = EXCLUDED.appointment_time").
		Set("realtor_id = EXCLUDED.realtor_id").
		Set("google_calendar_id = EXCLUDED.google_calendar_id").
		Set("google_event_id = EXCLUDED.google_event_id").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert booking: %w", err)
	}
	return nil
}
