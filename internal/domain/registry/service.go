package registry

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinova/hms/pkg/apperr"
)

type Service struct {
	patients      PatientRepository
	practitioners PractitionerRepository
	appointments  AppointmentRepository
}

func NewService(patients PatientRepository, practitioners PractitionerRepository, appointments AppointmentRepository) *Service {
	return &Service{patients: patients, practitioners: practitioners, appointments: appointments}
}

// -- Patients --

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if p.FirstName == "" || p.LastName == "" {
		return apperr.New(apperr.KindValidation, "first_name and last_name are required")
	}
	p.Active = true
	return s.patients.Create(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNotFound, err, "patient not found")
	}
	return p, nil
}

func (s *Service) GetPatientByMRN(ctx context.Context, mrn string) (*Patient, error) {
	if mrn == "" {
		return nil, apperr.New(apperr.KindValidation, "mrn is required")
	}
	p, err := s.patients.GetByMRN(ctx, mrn)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNotFound, err, "patient not found")
	}
	return p, nil
}

func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	if p.FirstName == "" || p.LastName == "" {
		return apperr.New(apperr.KindValidation, "first_name and last_name are required")
	}
	return s.patients.Update(ctx, p)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

// -- Practitioners --

func (s *Service) CreatePractitioner(ctx context.Context, p *Practitioner) error {
	if p.FirstName == "" || p.LastName == "" {
		return apperr.New(apperr.KindValidation, "first_name and last_name are required")
	}
	p.Active = true
	return s.practitioners.Create(ctx, p)
}

func (s *Service) GetPractitioner(ctx context.Context, id uuid.UUID) (*Practitioner, error) {
	p, err := s.practitioners.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNotFound, err, "practitioner not found")
	}
	return p, nil
}

func (s *Service) UpdatePractitioner(ctx context.Context, p *Practitioner) error {
	return s.practitioners.Update(ctx, p)
}

func (s *Service) ListPractitioners(ctx context.Context, limit, offset int) ([]*Practitioner, int, error) {
	return s.practitioners.List(ctx, limit, offset)
}

// -- Appointments --

func (s *Service) CreateAppointment(ctx context.Context, a *Appointment) error {
	if a.PatientID == uuid.Nil || a.PractitionerID == uuid.Nil {
		return apperr.New(apperr.KindValidation, "patient_id and practitioner_id are required")
	}
	if a.ScheduledAt.IsZero() {
		return apperr.New(apperr.KindValidation, "scheduled_at is required")
	}
	if _, err := s.patients.GetByID(ctx, a.PatientID); err != nil {
		return apperr.Wrap(apperr.KindNotFound, err, "patient not found")
	}
	if _, err := s.practitioners.GetByID(ctx, a.PractitionerID); err != nil {
		return apperr.Wrap(apperr.KindNotFound, err, "practitioner not found")
	}
	if a.DurationMins <= 0 {
		a.DurationMins = 30
	}
	a.Status = AppointmentBooked
	return s.appointments.Create(ctx, a)
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNotFound, err, "appointment not found")
	}
	return a, nil
}

// UpdateAppointmentStatus applies a status transition, rejecting moves the
// status machine does not allow.
func (s *Service) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, to AppointmentStatus) (*Appointment, error) {
	if to != AppointmentFulfilled && to != AppointmentCancelled {
		return nil, apperr.New(apperr.KindValidation, fmt.Sprintf("invalid target status %q", to))
	}
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNotFound, err, "appointment not found")
	}
	if !a.Status.CanTransitionTo(to) {
		return nil, apperr.New(apperr.KindStateConflict,
			fmt.Sprintf("cannot transition appointment from %s to %s", a.Status, to))
	}
	if err := s.appointments.UpdateStatus(ctx, id, to); err != nil {
		return nil, err
	}
	a.Status = to
	return a, nil
}

func (s *Service) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListAppointmentsByPractitioner(ctx context.Context, practitionerID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.ListByPractitioner(ctx, practitionerID, limit, offset)
}
