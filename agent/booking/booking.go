package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/contract"
	phonex "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/phone"
)

const (
	dateLayout    = "2006-01-02"
	timeLayout    = "15:04"
	slotDuration  = 30 * time.Minute
	reportBaseURL = "https://br.myrealvaluation.com/console/reports/"
)

// Service books valuation appointments. A lead has at most one active
// appointment; booking again replaces it.
type Service struct {
	bookings  contractx.BookingStore
	leads     contractx.LeadStore
	calendar  contractx.Calendar
	notifier  contractx.Notifier
	messenger contractx.Messenger
	now       func() time.Time
}

func New(
	bookings contractx.BookingStore,
	leads contractx.LeadStore,
	calendar contractx.Calendar,
	notifier contractx.Notifier,
	messenger contractx.Messenger,
) (*Service, error) {
	if bookings == nil {
		return nil, errors.New("booking store is required")
	}
	if leads == nil {
		return nil, errors.New("lead store is required")
	}
	if calendar == nil {
		return nil, errors.New("calendar is required")
	}
	if notifier == nil {
		return nil, errors.New("notifier is required")
	}
	if messenger == nil {
		return nil, errors.New("messenger is required")
	}
	return &Service{
		bookings:  bookings,
		leads:     leads,
		calendar:  calendar,
		notifier:  notifier,
		messenger: messenger,
		now:       time.Now,
	}, nil
}

// CreateOrUpdate books the slot for the lead. Dates are interpreted in the
// lead's time zone; past dates and already-booked slots are rejected with
// errors the model can relay. Notification failures are logged but do not
// fail the booking.
func (s *Service) CreateOrUpdate(ctx context.Context, info contractx.BookingInfo, bookedDate, bookedTime string) error {
	phone := phonex.Normalize(info.Phone)

	loc := time.UTC
	if info.TimeZone != "" {
		parsed, err := time.LoadLocation(info.TimeZone)
		if err != nil {
			log.Warn().Str("phone", phone).Str("tz", info.TimeZone).Err(err).
				Msg("unknown lead time zone, falling back to UTC")
		} else {
			loc = parsed
		}
	}

	start, err := time.ParseInLocation(dateLayout+" "+timeLayout, bookedDate+" "+bookedTime, loc)
	if err != nil {
		return fmt.Errorf("%w: could not parse %q %q", contractx.ErrValidation, bookedDate, bookedTime)
	}

	today := s.now().In(loc).Format(dateLayout)
	if start.Format(dateLayout) < today {
		return fmt.Errorf("%w, today is %s", contractx.ErrDatePassed, today)
	}

	taken, err := s.calendar.BookedSlots(ctx, info.RealtorID, bookedDate)
	if err != nil {
		return fmt.Errorf("check booked slots: %w", err)
	}
	for _, slot := range taken {
		if slot == bookedTime {
			return contractx.ErrSlotTaken
		}
	}

	existing, err := s.bookings.Get(ctx, phone)
	if err != nil {
		log.Warn().Str("phone", phone).Err(err).Msg("failed to look up existing booking")
	}
	rebooking := existing != nil

	reportLink := reportBaseURL + phone
	event := contractx.CalendarEvent{
		Summary:     "Meeting with " + info.FullName,
		Description: "Lead valuation report: " + reportLink,
		Start:       start,
		End:         start.Add(slotDuration),
		Phone:       phone,
	}
	eventID, err := s.calendar.AddEvent(ctx, info.RealtorID, event)
	if err != nil {
		return fmt.Errorf("create calendar event: %w", err)
	}

	err = s.bookings.Upsert(ctx, &contractx.Booking{
		Phone:           phone,
		AppointmentTime: start,
		RealtorID:       info.RealtorID,
		EventID:         eventID,
	})
	if err != nil {
		return fmt.Errorf("persist booking: %w", err)
	}
	if err := s.leads.SetState(ctx, phone, contractx.LeadBooked); err != nil {
		log.Warn().Str("phone", phone).Err(err).Msg("failed to mark lead booked")
	}

	when := start.Format("02/01/2006 " + timeLayout)
	s.notifyRealtor(ctx, phone, info.RealtorID, info.FullName, when, reportLink)

	confirmation := fmt.Sprintf("Obrigado %s, seu compromisso está confirmado para %s.", info.FullName, when)
	if err := s.messenger.SendText(ctx, phone, confirmation); err != nil {
		log.Warn().Str("phone", phone).Err(err).Msg("failed to send booking confirmation")
	}

	log.Info().Str("phone", phone).Str("event_id", eventID).Bool("rebooking", rebooking).
		Time("start", start).Msg("appointment booked")
	return nil
}

// MarkBooked records a booking with no concrete time attached. Used when
// the realtor has no linked calendar and will arrange the visit directly.
func (s *Service) MarkBooked(ctx context.Context, phone string) error {
	phone = phonex.Normalize(phone)

	info, err := s.leads.BookingInfo(ctx, phone)
	if err != nil {
		return err
	}
	if err := s.leads.SetState(ctx, phone, contractx.LeadBooked); err != nil {
		return fmt.Errorf("mark lead booked: %w", err)
	}

	s.notifyRealtor(ctx, phone, info.RealtorID, info.FullName, "Unknown", reportBaseURL+phone)
	return nil
}

func (s *Service) notifyRealtor(ctx context.Context, phone, realtorID, leadName, when, reportLink string) {
	realtor, err := s.leads.Realtor(ctx, realtorID)
	if err != nil || realtor == nil || realtor.NotifyEmail == "" {
		if err != nil {
			log.Warn().Str("phone", phone).Str("realtor_id", realtorID).Err(err).
				Msg("failed to resolve realtor for booking notification")
		}
		return
	}

	address := ""
	if lead, err := s.leads.Get(ctx, phone); err == nil && len(lead.Addresses) > 0 {
		address = lead.Addresses[0].Address
	}

	if err := s.notifier.BookingNotification(ctx, realtor.NotifyEmail, leadName, address, when, reportLink); err != nil {
		log.Warn().Str("phone", phone).Str("email", realtor.NotifyEmail).Err(err).
			Msg("failed to email booking notification")
	}
}
