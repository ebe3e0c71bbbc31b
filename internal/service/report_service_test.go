package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"formafit/trainer-app/internal/domain"
	"formafit/trainer-app/internal/events"
	"formafit/trainer-app/internal/report"
	"formafit/trainer-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newReports(f *fixture, sender *fakeSender) ReportService {
	return NewReportService(f.repos, f.files, sender, report.NewRenderer(), f.publisher, f.clock)
}

func fullReportType(t *testing.T, svc ReportService) *domain.ReportType {
	t.Helper()
	rt, err := svc.CreateType(context.Background(), ReportTypeInput{
		Name:                "Quarterly progress",
		IncludeCharts:       true,
		IncludePhotos:       true,
		IncludeMeasurements: true,
		IncludeAttendance:   true,
	})
	if err != nil {
		t.Fatal(err)
	}
	return rt
}

func TestGenerateReportStoresDocument(t *testing.T) {
	f := newFixture()
	svc := newReports(f, &fakeSender{})
	ctx := context.Background()
	rt := fullReportType(t, svc)
	student := f.addStudent(f.trainer, "Ana Lima")
	f.measurements.Create(ctx, &domain.BodyMeasurement{TrainerID: f.trainer, StudentID: student.ID, Date: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), WeightKg: 81.5})
	f.measurements.Create(ctx, &domain.BodyMeasurement{TrainerID: f.trainer, StudentID: student.ID, Date: time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC), WeightKg: 90})

	rep, err := svc.Generate(ctx, f.trainer, ReportInput{
		StudentID:   student.ID,
		TypeID:      rt.ID,
		PeriodStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   fixedToday,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if rep.Status != domain.ReportReady || rep.S3ObjectKey == "" {
		t.Fatalf("report = %+v", rep)
	}
	if rep.Title != "Quarterly progress - Ana Lima" {
		t.Errorf("title = %q", rep.Title)
	}

	body, err := f.files.GetObject(ctx, rep.S3ObjectKey)
	if err != nil {
		t.Fatal(err)
	}
	html := string(body)
	if !strings.Contains(html, "Ana Lima") || !strings.Contains(html, "81.5") {
		t.Errorf("document misses student data")
	}
	if strings.Contains(html, "90.0") {
		t.Errorf("measurement outside the period was included")
	}

	stored, _ := f.reports.GetByID(ctx, f.trainer, rep.ID)
	if stored.Status != domain.ReportReady {
		t.Errorf("stored status = %q", stored.Status)
	}
	names := f.publisher.names()
	if len(names) != 1 || names[0] != events.ReportGenerated {
		t.Errorf("events = %v", names)
	}

	url, err := svc.DownloadURL(ctx, f.trainer, rep.ID)
	if err != nil || !strings.HasSuffix(url, rep.S3ObjectKey) {
		t.Errorf("download url = %q err = %v", url, err)
	}
}

func TestGenerateReportStorageFailure(t *testing.T) {
	f := newFixture()
	svc := newReports(f, &fakeSender{})
	ctx := context.Background()
	rt := fullReportType(t, svc)
	student := f.addStudent(f.trainer, "Ana Lima")
	f.files.putErr = errors.New("bucket unavailable")

	rep, err := svc.Generate(ctx, f.trainer, ReportInput{StudentID: student.ID, TypeID: rt.ID, PeriodStart: fixedToday, PeriodEnd: fixedToday})
	if !errors.Is(err, ErrStorageFailure) {
		t.Fatalf("err = %v", err)
	}
	stored, _ := f.reports.GetByID(ctx, f.trainer, rep.ID)
	if stored.Status != domain.ReportFailed || stored.Error == "" {
		t.Errorf("stored = %+v", stored)
	}

	if _, err := svc.DownloadURL(ctx, f.trainer, rep.ID); !errors.Is(err, ErrReportNotReady) {
		t.Errorf("download of failed report: %v", err)
	}

	f.files.putErr = nil
	again, err := svc.Regenerate(ctx, f.trainer, rep.ID)
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if again.Status != domain.ReportReady || again.Error != "" {
		t.Errorf("regenerated = %+v", again)
	}
}

func TestGenerateReportValidation(t *testing.T) {
	f := newFixture()
	svc := newReports(f, &fakeSender{})
	ctx := context.Background()
	rt := fullReportType(t, svc)
	student := f.addStudent(f.trainer, "Ana Lima")

	_, err := svc.Generate(ctx, f.trainer, ReportInput{StudentID: student.ID, TypeID: rt.ID, PeriodStart: fixedToday, PeriodEnd: fixedToday.AddDate(0, 0, -1)})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("inverted period: %v", err)
	}

	inactive := false
	if _, err := svc.UpdateType(ctx, rt.ID, ReportTypeInput{Name: rt.Name, Active: &inactive}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Generate(ctx, f.trainer, ReportInput{StudentID: student.ID, TypeID: rt.ID, PeriodStart: fixedToday, PeriodEnd: fixedToday}); !errors.Is(err, ErrReportTypeInactive) {
		t.Errorf("inactive type: %v", err)
	}

	if _, err := svc.CreateType(ctx, ReportTypeInput{Name: rt.Name}); !errors.Is(err, ErrReportTypeExists) {
		t.Errorf("duplicate type name: %v", err)
	}
}

func TestEmailReport(t *testing.T) {
	f := newFixture()
	sender := &fakeSender{}
	svc := newReports(f, sender)
	ctx := context.Background()
	rt := fullReportType(t, svc)
	student := f.addStudent(f.trainer, "Ana Lima")

	rep, err := svc.Generate(ctx, f.trainer, ReportInput{StudentID: student.ID, TypeID: rt.ID, PeriodStart: fixedToday, PeriodEnd: fixedToday})
	if err != nil {
		t.Fatal(err)
	}

	sent, err := svc.Email(ctx, f.trainer, rep.ID, "")
	if err != nil {
		t.Fatalf("Email: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0].To != student.Email || !strings.Contains(sender.sent[0].HTML, "Ana Lima") {
		t.Errorf("sent = %+v", sender.sent)
	}
	if a := sender.sent[0].Attachment; a == nil || !strings.HasSuffix(a.Filename, ".html") || len(a.Content) == 0 {
		t.Errorf("attachment = %+v", a)
	}
	if sender.sent[0].Tags["report_id"] != rep.ID.Hex() {
		t.Errorf("tags = %v", sender.sent[0].Tags)
	}
	if sent.SentTo != student.Email || sent.SentAt == nil {
		t.Errorf("delivery not recorded: %+v", sent)
	}

	sender.err = errors.New("rate limited")
	_, err = svc.Email(ctx, f.trainer, rep.ID, "coach@example.com")
	if !errors.Is(err, ErrEmailDelivery) || CodeOf(err) != CodeDeliveryFailed {
		t.Errorf("err = %v code = %q", err, CodeOf(err))
	}
}

func TestDeleteReportRemovesObject(t *testing.T) {
	f := newFixture()
	svc := newReports(f, &fakeSender{})
	ctx := context.Background()
	rt := fullReportType(t, svc)
	student := f.addStudent(f.trainer, "Ana Lima")
	rep, err := svc.Generate(ctx, f.trainer, ReportInput{StudentID: student.ID, TypeID: rt.ID, PeriodStart: fixedToday, PeriodEnd: fixedToday})
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Delete(ctx, newFixture().trainer, rep.ID); !errors.Is(err, ErrReportNotFound) {
		t.Errorf("foreign delete: %v", err)
	}
	if err := svc.Delete(ctx, f.trainer, rep.ID); err != nil {
		t.Fatal(err)
	}
	if ok, _ := f.files.ObjectExists(ctx, rep.S3ObjectKey); ok {
		t.Error("object still stored")
	}
}

func TestGenerateManyReportsPerStudent(t *testing.T) {
	f := newFixture()
	svc := newReports(f, &fakeSender{})
	ctx := context.Background()
	rt := fullReportType(t, svc)
	ana := f.addStudent(f.trainer, "Ana Lima")
	bruno := f.addStudent(f.trainer, "Bruno Reis")
	foreign := f.addStudent(primitive.NewObjectID(), "Carla Dias")

	results, err := svc.GenerateMany(ctx, f.trainer, BatchReportInput{
		StudentIDs:  []primitive.ObjectID{ana.ID, bruno.ID, ana.ID, foreign.ID},
		TypeID:      rt.ID,
		PeriodStart: fixedToday.AddDate(0, -1, 0),
		PeriodEnd:   fixedToday,
	})
	if err != nil {
		t.Fatalf("GenerateMany: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3 (duplicates collapsed)", len(results))
	}
	for i, want := range []*domain.Student{ana, bruno} {
		res := results[i]
		if res.StudentID != want.ID || res.Code != "" || res.Report == nil || res.Report.Status != domain.ReportReady {
			t.Errorf("result %d = %+v", i, res)
			continue
		}
		if res.Report.Title != "Quarterly progress - "+want.Name {
			t.Errorf("title = %q", res.Report.Title)
		}
	}
	if last := results[2]; last.Code != CodeNotFound || last.Report != nil || last.Error != "student not found" {
		t.Errorf("foreign student = %+v", last)
	}
	if n := f.reports.count(); n != 2 {
		t.Errorf("stored reports = %d, want 2", n)
	}
}

func TestGenerateManyKeepsGoingAfterStorageFailure(t *testing.T) {
	f := newFixture()
	svc := newReports(f, &fakeSender{})
	ctx := context.Background()
	rt := fullReportType(t, svc)
	ana := f.addStudent(f.trainer, "Ana Lima")
	f.files.putErr = errors.New("bucket unavailable")

	results, err := svc.GenerateMany(ctx, f.trainer, BatchReportInput{
		StudentIDs:  []primitive.ObjectID{ana.ID},
		TypeID:      rt.ID,
		PeriodStart: fixedToday,
		PeriodEnd:   fixedToday,
	})
	if err != nil {
		t.Fatal(err)
	}
	res := results[0]
	if res.Code != CodeStorage || res.Report == nil || res.Report.Status != domain.ReportFailed {
		t.Errorf("result = %+v", res)
	}
	if strings.Contains(res.Error, "bucket") {
		t.Errorf("storage detail leaked: %q", res.Error)
	}
}

func TestGenerateManyRejectsBadBatch(t *testing.T) {
	f := newFixture()
	svc := newReports(f, &fakeSender{})
	ctx := context.Background()
	rt := fullReportType(t, svc)
	ana := f.addStudent(f.trainer, "Ana Lima")

	tests := []struct {
		name string
		in   BatchReportInput
		want error
	}{
		{"no students", BatchReportInput{TypeID: rt.ID, PeriodStart: fixedToday, PeriodEnd: fixedToday}, ErrValidation},
		{"missing period", BatchReportInput{StudentIDs: []primitive.ObjectID{ana.ID}, TypeID: rt.ID}, ErrValidation},
		{"inverted period", BatchReportInput{StudentIDs: []primitive.ObjectID{ana.ID}, TypeID: rt.ID, PeriodStart: fixedToday, PeriodEnd: fixedToday.AddDate(0, 0, -1)}, ErrValidation},
		{"unknown type", BatchReportInput{StudentIDs: []primitive.ObjectID{ana.ID}, TypeID: primitive.NewObjectID(), PeriodStart: fixedToday, PeriodEnd: fixedToday}, ErrReportTypeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.GenerateMany(ctx, f.trainer, tt.in); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if n := f.reports.count(); n != 0 {
		t.Errorf("reports stored for rejected batches: %d", n)
	}
}

func TestReportDashboard(t *testing.T) {
	f := newFixture()
	sender := &fakeSender{}
	svc := newReports(f, sender)
	ctx := context.Background()
	rt := fullReportType(t, svc)
	ana := f.addStudent(f.trainer, "Ana Lima")
	in := ReportInput{StudentID: ana.ID, TypeID: rt.ID, PeriodStart: fixedToday, PeriodEnd: fixedToday}

	var last *domain.Report
	for i := 0; i < 6; i++ {
		rep, err := svc.Generate(ctx, f.trainer, in)
		if err != nil {
			t.Fatal(err)
		}
		last = rep
	}
	if _, err := svc.Email(ctx, f.trainer, last.ID, ""); err != nil {
		t.Fatal(err)
	}
	f.files.putErr = errors.New("bucket unavailable")
	failed, _ := svc.Generate(ctx, f.trainer, in)
	f.files.putErr = nil
	// Last month's report counts in the totals only.
	f.reports.Create(ctx, &domain.Report{TrainerID: f.trainer, StudentID: ana.ID, TypeID: rt.ID, Status: domain.ReportReady, CreatedAt: fixedToday.AddDate(0, -1, 0)})
	// Another trainer's report is invisible.
	f.reports.Create(ctx, &domain.Report{TrainerID: primitive.NewObjectID(), StudentID: ana.ID, TypeID: rt.ID, Status: domain.ReportReady})

	d, err := svc.Dashboard(ctx, f.trainer)
	if err != nil {
		t.Fatal(err)
	}
	want := repository.ReportCounts{Total: 8, Ready: 7, Failed: 1, Sent: 1, ThisMonth: 7}
	if d.Counts != want {
		t.Errorf("counts = %+v, want %+v", d.Counts, want)
	}
	if len(d.Recent) != 5 {
		t.Fatalf("recent = %d reports, want 5", len(d.Recent))
	}
	if d.Recent[0].ID != failed.ID || d.Recent[0].Status != domain.ReportFailed {
		t.Errorf("newest = %+v, want the failed report", d.Recent[0])
	}
	if d.ActiveTypes != 1 {
		t.Errorf("active types = %d", d.ActiveTypes)
	}
}
