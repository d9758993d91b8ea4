package web

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"cranesection/internal/bootstrap/logging"
	domain "cranesection/internal/domain/followup"
	"cranesection/internal/domain/roster"
	"cranesection/internal/errs"
	"cranesection/internal/infrastructure/export"
	"cranesection/internal/usecase/followup"
)

func (s *server) followupsPage(r *http.Request, filter domain.Filter) (pageData, error) {
	data := s.base(r, "Follow-up Sheet", "followups")
	data.Sections = s.deps.Followups.Sections()
	data.Statuses = domain.Statuses
	data.Header = s.deps.Followups.Header()
	data.Filter = filter
	data.Form = domain.Followup{Status: domain.StatusOpen}
	for i := 1; i <= s.deps.EquipmentMax; i++ {
		data.EquipmentNumbers = append(data.EquipmentNumbers, i)
	}

	items, err := s.deps.Followups.List(r.Context(), filter)
	if err != nil {
		return data, err
	}
	data.Followups = items
	return data, nil
}

func (s *server) listFollowups(w http.ResponseWriter, r *http.Request) {
	filter := domain.Filter{
		Section: strings.TrimSpace(r.URL.Query().Get("section")),
		Status:  domain.Status(strings.TrimSpace(r.URL.Query().Get("status"))),
	}
	data, err := s.followupsPage(r, filter)
	if err != nil {
		s.fail(w, r, data, err)
		return
	}
	render(w, r, http.StatusOK, page("followups", data))
}

func (s *server) submitFollowup(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 2*s.deps.MaxUploadBytes + 1<<20)
	if err := r.ParseMultipartForm(s.deps.MaxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		s.fail(w, r, s.base(r, "Follow-up Sheet", "followups"), errs.E(errs.KindValidation, "parse form", err))
		return
	}

	input := followup.SubmitInput{Followup: domain.Followup{
		Section:    r.FormValue("section"),
		Equipment:  r.FormValue("equipment"),
		Problem:    r.FormValue("problem"),
		Note:       r.FormValue("note"),
		ItemCodes:  r.FormValue("item_codes"),
		ReportedBy: r.FormValue("reported_by"),
		ResolvedBy: r.FormValue("resolved_by"),
		Status:     domain.Status(r.FormValue("status")),
	}}
	var err error
	if input.Image, err = formFile(r, "image"); err != nil {
		s.fail(w, r, s.base(r, "Follow-up Sheet", "followups"), err)
		return
	}
	if input.Audio, err = formFile(r, "audio"); err != nil {
		s.fail(w, r, s.base(r, "Follow-up Sheet", "followups"), err)
		return
	}

	result, submitErr := s.deps.Followups.Submit(r.Context(), input)

	data, err := s.followupsPage(r, domain.Filter{})
	if err != nil {
		s.fail(w, r, data, err)
		return
	}
	if submitErr != nil {
		if errs.KindOf(submitErr) != errs.KindValidation {
			s.fail(w, r, data, submitErr)
			return
		}
		// Re-prompt with what the user typed.
		data.Form = input.Followup
		data.Error = submitErr.Error()
		render(w, r, http.StatusUnprocessableEntity, page("followups", data))
		return
	}

	data.Message = "Follow-up added successfully!"
	data.Warnings = result.Warnings
	render(w, r, http.StatusOK, page("followups", data))
}

func formFile(r *http.Request, field string) (*followup.File, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, errs.E(errs.KindValidation, "read "+field, err)
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, errs.E(errs.KindValidation, "read "+field, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return &followup.File{
		Data:     data,
		Filename: header.Filename,
		MIMEType: header.Header.Get("Content-Type"),
	}, nil
}

func (s *server) exportFollowups(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.deps.Followups.Export(r.Context(), &buf); err != nil {
		s.fail(w, r, s.base(r, "Follow-up Sheet", "followups"), err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="followups.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = buf.WriteTo(w)
}

func (s *server) reports(w http.ResponseWriter, r *http.Request) {
	data := s.base(r, "Reports", "reports")
	metrics, err := s.deps.Followups.Report(r.Context())
	if err != nil {
		s.fail(w, r, data, err)
		return
	}
	data.Metrics = metrics
	render(w, r, http.StatusOK, page("reports", data))
}

func (s *server) rosterPage(r *http.Request) (pageData, error) {
	data := s.base(r, "Weekly Roster", "roster")
	data.Days = roster.Days
	view, err := s.deps.Roster.Load(r.Context())
	if err != nil {
		return data, err
	}
	data.Roster = view.Grid
	data.Version = view.Version
	return data, nil
}

func (s *server) showRoster(w http.ResponseWriter, r *http.Request) {
	data, err := s.rosterPage(r)
	if err != nil {
		s.fail(w, r, data, err)
		return
	}
	render(w, r, http.StatusOK, page("roster", data))
}

func (s *server) saveRoster(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.fail(w, r, s.base(r, "Weekly Roster", "roster"), errs.E(errs.KindValidation, "parse form", err))
		return
	}

	grid := parseRosterForm(r)
	_, saveErr := s.deps.Roster.Save(r.Context(), grid, r.PostFormValue("version"))
	if saveErr != nil {
		data := s.base(r, "Weekly Roster", "roster")
		data.Days = roster.Days
		data.Roster = grid
		data.Version = r.PostFormValue("version")
		if errs.IsKind(saveErr, errs.KindConflict) {
			data.Error = "The roster was changed by someone else. Reload the page to see the latest version; your edits are shown below."
			render(w, r, http.StatusConflict, page("roster", data))
			return
		}
		s.fail(w, r, data, saveErr)
		return
	}

	data, err := s.rosterPage(r)
	if err != nil {
		s.fail(w, r, data, err)
		return
	}
	data.Message = "Roster saved."
	render(w, r, http.StatusOK, page("roster", data))
}

func parseRosterForm(r *http.Request) roster.Grid {
	var grid roster.Grid
	for i := 0; ; i++ {
		role, ok := r.PostForm[fmt.Sprintf("role.%d", i)]
		if !ok || len(role) == 0 {
			break
		}
		row := roster.Row{Role: role[0], Days: make(map[string]string, len(roster.Days))}
		for _, day := range roster.Days {
			row.Days[day] = strings.TrimSpace(r.PostFormValue(fmt.Sprintf("cell.%d.%s", i, day)))
		}
		grid.Rows = append(grid.Rows, row)
	}
	return grid
}

func (s *server) serveAttachment(w http.ResponseWriter, r *http.Request) {
	if s.deps.LocalAttachments == nil {
		http.NotFound(w, r)
		return
	}
	path, err := s.deps.LocalAttachments.Path(chi.URLParam(r, "name"))
	if err != nil {
		logging.Debug(r.Context(), "attachment name rejected", slog.Any("err", errs.Loggable(err)))
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}
