package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/eerriikk-pro/sius-parse/internal/adapters/http/api"
	"github.com/eerriikk-pro/sius-parse/internal/adapters/ingest"
	"github.com/eerriikk-pro/sius-parse/internal/adapters/repository"
	service "github.com/eerriikk-pro/sius-parse/internal/app"
	"github.com/eerriikk-pro/sius-parse/internal/domain/model"
	"github.com/eerriikk-pro/sius-parse/internal/domain/period"
	"github.com/eerriikk-pro/sius-parse/pkg/metrics"
	. "github.com/smartystreets/goconvey/convey"
)

// Mock implementations for testing
type call struct {
	athleteID int64
	days      int
	day       model.Date
	index     int
}

type mockDependencies struct {
	last      call
	reportErr error
	report    *model.PeriodReport
	submitErr error
	submitted []string
	athletes  map[int64]model.Athlete
}

func newMockDependencies() *mockDependencies {
	return &mockDependencies{athletes: map[int64]model.Athlete{}}
}

func (m *mockDependencies) GetRecent(_ context.Context, athleteID int64, days int) ([]model.DayStats, error) {
	m.last = call{athleteID: athleteID, days: days}
	if m.reportErr != nil {
		return nil, m.reportErr
	}
	return []model.DayStats{{TotalShots: 60, BestScore: 10.7}}, nil
}

func (m *mockDependencies) GetStats(_ context.Context, athleteID int64, days int) (model.PeriodReport, error) {
	m.last = call{athleteID: athleteID, days: days}
	if m.reportErr != nil {
		return model.PeriodReport{}, m.reportErr
	}
	if m.report != nil {
		return *m.report, nil
	}
	return model.PeriodReport{BestScore: 105.2, AverageScore: 101.5, BestScoreDelta: 1.1}, nil
}

func (m *mockDependencies) GetDay(_ context.Context, athleteID int64, day model.Date) (model.DayStats, error) {
	m.last = call{athleteID: athleteID, day: day}
	if m.reportErr != nil {
		return model.DayStats{}, m.reportErr
	}
	return model.DayStats{Day: day, TotalShots: 61, TotalSighters: 3}, nil
}

func (m *mockDependencies) GetSet(_ context.Context, athleteID int64, day model.Date, index int) ([]model.RelayStats, error) {
	m.last = call{athleteID: athleteID, day: day, index: index}
	if m.reportErr != nil {
		return nil, m.reportErr
	}
	return []model.RelayStats{{TotalShots: 10, TotalScore: 101.3}}, nil
}

func (m *mockDependencies) SubmitImport(_ context.Context, filename string, _ []byte) (model.ImportJob, error) {
	if m.submitErr != nil {
		return model.ImportJob{}, m.submitErr
	}
	m.submitted = append(m.submitted, filename)
	return model.ImportJob{ID: fmt.Sprintf("job-%d", len(m.submitted)), Filename: filename, Status: model.JobQueued}, nil
}

func (m *mockDependencies) Job(_ context.Context, id string) (model.ImportJob, error) {
	if id != "job-1" {
		return model.ImportJob{}, service.ErrJobNotFound
	}
	return model.ImportJob{ID: id, Status: model.JobDone}, nil
}

func (m *mockDependencies) CreateAthlete(_ context.Context, a model.Athlete) (model.Athlete, error) {
	if _, ok := m.athletes[a.ID]; ok {
		return model.Athlete{}, repository.ErrConflict
	}
	m.athletes[a.ID] = a
	return a, nil
}

func (m *mockDependencies) GetAthlete(_ context.Context, id int64) (model.Athlete, error) {
	a, ok := m.athletes[id]
	if !ok {
		return model.Athlete{}, repository.ErrNotFound
	}
	return a, nil
}

func (m *mockDependencies) ListAthletes(_ context.Context) ([]model.Athlete, error) {
	out := make([]model.Athlete, 0, len(m.athletes))
	for _, a := range m.athletes {
		out = append(out, a)
	}
	return out, nil
}

func (m *mockDependencies) UpdateAthlete(_ context.Context, id int64, u model.AthleteUpdate) (model.Athlete, error) {
	a, ok := m.athletes[id]
	if !ok {
		return model.Athlete{}, repository.ErrNotFound
	}
	a = u.Apply(a)
	m.athletes[id] = a
	return a, nil
}

func (m *mockDependencies) DeleteAthlete(_ context.Context, id int64) error {
	if _, ok := m.athletes[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.athletes, id)
	return nil
}

type mockStatusProvider struct {
	status map[string]any
}

func (m *mockStatusProvider) Status() map[string]any {
	return m.status
}

func newMux(deps *mockDependencies, opts ...api.Option) *http.ServeMux {
	mux := http.NewServeMux()
	server := api.NewServer(deps, &mockStatusProvider{status: map[string]any{"workers": 2}}, opts...)
	server.Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, target string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func errorCode(w *httptest.ResponseRecorder) string {
	var body struct {
		Code string `json:"code"`
	}
	So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
	return body.Code
}

// errorsByType reads the errors_by_type_total counter for one label pair.
func errorsByType(kind, severity string) float64 {
	families, err := metrics.GetRegistry().Gather()
	So(err, ShouldBeNil)
	for _, mf := range families {
		if !strings.HasSuffix(mf.GetName(), "errors_by_type_total") {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["error_type"] == kind && labels["severity"] == severity {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func upload(files map[string]string) *http.Request {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := mw.CreateFormFile("file", name)
		So(err, ShouldBeNil)
		_, err = part.Write([]byte(content))
		So(err, ShouldBeNil)
	}
	So(mw.Close(), ShouldBeNil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/import/csv", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := newMockDependencies()
		mux := newMux(deps)

		Convey("Then health and metrics are served", func() {
			So(do(mux, http.MethodGet, "/healthz", "").Code, ShouldEqual, http.StatusOK)
			So(do(mux, http.MethodGet, "/metrics", "").Code, ShouldEqual, http.StatusOK)
		})

		Convey("And status returns the provider snapshot", func() {
			w := do(mux, http.MethodGet, "/status", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"workers":2`)
		})

		Convey("And unknown methods are rejected by the mux", func() {
			So(do(mux, http.MethodPost, "/api/v1/shots/stats", "").Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestShotsHandler(t *testing.T) {
	Convey("Given the shots endpoints", t, func() {
		deps := newMockDependencies()
		mux := newMux(deps, api.WithWindowDays(7, 30))

		Convey("When asking for recent scores without days", func() {
			w := do(mux, http.MethodGet, "/api/v1/shots/recent-scores?athlete_id=359", "")

			Convey("Then the default window is used", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.last.athleteID, ShouldEqual, 359)
				So(deps.last.days, ShouldEqual, 7)
				So(w.Body.String(), ShouldContainSubstring, `"total_shots":60`)
			})
		})

		Convey("When asking for stats with a period", func() {
			w := do(mux, http.MethodGet, "/api/v1/shots/stats?athlete_id=359&period=14days", "")

			Convey("Then the period sets the window", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.last.days, ShouldEqual, 14)
				So(w.Body.String(), ShouldContainSubstring, `"best_score_delta":1.1`)
			})
		})

		Convey("When asking for stats with days instead of a period", func() {
			w := do(mux, http.MethodGet, "/api/v1/shots/stats?athlete_id=359&days=3", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.last.days, ShouldEqual, 3)
		})

		Convey("When the window is out of range", func() {
			for _, q := range []string{"days=0", "days=31", "days=abc", "period=ten", "period=0days", "period=1day"} {
				w := do(mux, http.MethodGet, "/api/v1/shots/stats?athlete_id=359&"+q, "")
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(errorCode(w), ShouldEqual, "bad_request")
			}
		})

		Convey("When athlete_id is missing or invalid", func() {
			for _, q := range []string{"", "athlete_id=", "athlete_id=-1", "athlete_id=x"} {
				w := do(mux, http.MethodGet, "/api/v1/shots/recent-scores?"+q, "")
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			}
		})

		Convey("When asking for one day", func() {
			w := do(mux, http.MethodGet, "/api/v1/shots/by-day?athlete_id=359&date_=2025-02-28", "")

			Convey("Then the parsed date reaches the reader", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.last.day.String(), ShouldEqual, "2025-02-28")
				So(w.Body.String(), ShouldContainSubstring, `"day":"2025-02-28"`)
			})

			Convey("And the date alias is accepted", func() {
				w := do(mux, http.MethodGet, "/api/v1/shots/by-day?athlete_id=359&date=2025-03-01", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.last.day.String(), ShouldEqual, "2025-03-01")
			})
		})

		Convey("When the date is missing or malformed", func() {
			So(do(mux, http.MethodGet, "/api/v1/shots/by-day?athlete_id=359", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/api/v1/shots/by-day?athlete_id=359&date_=28-02-2025", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When asking for a set", func() {
			w := do(mux, http.MethodGet, "/api/v1/shots/by-set?athlete_id=359&date_=2025-02-28&set_id=2", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.last.index, ShouldEqual, 2)
			So(w.Body.String(), ShouldContainSubstring, `"total_score":101.3`)

			Convey("And set_id below one is rejected", func() {
				w := do(mux, http.MethodGet, "/api/v1/shots/by-set?athlete_id=359&date_=2025-02-28&set_id=0", "")
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the reader fails", func() {
			Convey("Then an invalid window maps to 400", func() {
				deps.reportErr = fmt.Errorf("stats: %w", period.ErrInvalidWindow)
				w := do(mux, http.MethodGet, "/api/v1/shots/stats?athlete_id=359", "")
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})

			Convey("And a stopped service maps to 503", func() {
				deps.reportErr = service.ErrNotStarted
				w := do(mux, http.MethodGet, "/api/v1/shots/recent-scores?athlete_id=359", "")
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
				So(errorCode(w), ShouldEqual, "unavailable")
			})

			Convey("And anything else maps to 500", func() {
				deps.reportErr = errors.New("disk on fire")
				w := do(mux, http.MethodGet, "/api/v1/shots/by-day?athlete_id=359&date_=2025-02-28", "")
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(errorCode(w), ShouldEqual, "internal_error")
			})

			Convey("And a result that cannot be encoded is a 500 with a body", func() {
				deps.report = &model.PeriodReport{BestScore: 10.2, AverageScore: math.NaN()}
				w := do(mux, http.MethodGet, "/api/v1/shots/stats?athlete_id=359", "")
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(errorCode(w), ShouldEqual, "internal_error")
			})
		})
	})
}

func TestImportHandler(t *testing.T) {
	Convey("Given the import endpoints", t, func() {
		deps := newMockDependencies()
		mux := newMux(deps)

		Convey("When uploading two exports", func() {
			req := upload(map[string]string{
				"20250228_Club.csv": "x",
				"20250301_Club.csv": "y",
			})
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then both are queued", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				var body struct {
					Jobs []model.ImportJob `json:"jobs"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body.Jobs, ShouldHaveLength, 2)
				So(deps.submitted, ShouldHaveLength, 2)
			})
		})

		Convey("When one file name has no date", func() {
			req := upload(map[string]string{
				"20250228_Club.csv": "x",
				"notes.txt":         "y",
			})
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then nothing is queued", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(deps.submitted, ShouldBeEmpty)
			})
		})

		Convey("When the upload has no file parts", func() {
			req := upload(map[string]string{})
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the queue is full", func() {
			deps.submitErr = service.ErrBackpressure
			req := upload(map[string]string{"20250228_Club.csv": "x"})
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then the client is told to back off", func() {
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
				So(errorCode(w), ShouldEqual, "backpressure")
				So(w.Body.String(), ShouldContainSubstring, `"jobs":[]`)
			})
		})

		Convey("When the service rejects a file", func() {
			deps.submitErr = fmt.Errorf("submit: %w", ingest.ErrUnsupportedFile)
			req := upload(map[string]string{"20250228_Club.csv": "x"})
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the body exceeds the limit", func() {
			small := newMux(deps, api.WithMaxUploadBytes(64))
			req := upload(map[string]string{"20250228_Club.csv": strings.Repeat("1;", 200)})
			before := errorsByType("too_large", "low")
			w := httptest.NewRecorder()
			small.ServeHTTP(w, req)

			Convey("Then the request is refused", func() {
				So(w.Code, ShouldEqual, http.StatusRequestEntityTooLarge)
				So(deps.submitted, ShouldBeEmpty)
			})

			Convey("And the failure is counted under its own kind", func() {
				So(errorsByType("too_large", "low"), ShouldEqual, before+1)
			})
		})

		Convey("When looking up jobs", func() {
			So(do(mux, http.MethodGet, "/api/v1/import/jobs/job-1", "").Code, ShouldEqual, http.StatusOK)
			w := do(mux, http.MethodGet, "/api/v1/import/jobs/nope", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(errorCode(w), ShouldEqual, "not_found")
		})
	})
}

func TestAthleteHandler(t *testing.T) {
	Convey("Given the athlete endpoints", t, func() {
		deps := newMockDependencies()
		mux := newMux(deps)

		Convey("When creating an athlete", func() {
			w := do(mux, http.MethodPost, "/api/v1/athlete", `{"id":359,"first_name":"Liv","last_name":"Park","active":true}`)
			So(w.Code, ShouldEqual, http.StatusCreated)

			Convey("Then it can be read back", func() {
				w := do(mux, http.MethodGet, "/api/v1/athlete/359", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"first_name":"Liv"`)
			})

			Convey("And listed", func() {
				w := do(mux, http.MethodGet, "/api/v1/athlete", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"id":359`)
			})

			Convey("And a second create conflicts", func() {
				w := do(mux, http.MethodPost, "/api/v1/athlete", `{"id":359,"first_name":"X","last_name":"Y"}`)
				So(w.Code, ShouldEqual, http.StatusConflict)
			})

			Convey("And a partial update keeps other fields", func() {
				w := do(mux, http.MethodPut, "/api/v1/athlete/359", `{"active":false}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.athletes[359].Active, ShouldBeFalse)
				So(deps.athletes[359].LastName, ShouldEqual, "Park")
			})

			Convey("And delete removes it", func() {
				w := do(mux, http.MethodDelete, "/api/v1/athlete/359", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"ok":true`)
				So(do(mux, http.MethodGet, "/api/v1/athlete/359", "").Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When the body or id is malformed", func() {
			So(do(mux, http.MethodPost, "/api/v1/athlete", `{"id":`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/api/v1/athlete/abc", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodDelete, "/api/v1/athlete/0", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the athlete does not exist", func() {
			So(do(mux, http.MethodPut, "/api/v1/athlete/7", `{"active":true}`).Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestErrors(t *testing.T) {
	Convey("Given wrapped API errors", t, func() {
		Convey("Then Wrap keeps nil as nil", func() {
			So(api.Wrap("op", nil), ShouldBeNil)
		})

		Convey("And WrapKind matches both the kind and the cause", func() {
			cause := errors.New("boom")
			err := api.WrapKind("api.test", api.ErrBadRequest, cause)
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.test: bad request: boom")
		})

		Convey("And NewKind names the operation", func() {
			So(api.NewKind("api.test", api.ErrNotFound).Error(), ShouldEqual, "api.test: not found")
		})
	})
}
