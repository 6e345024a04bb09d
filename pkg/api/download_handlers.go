package api

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/spkrepo/pkg/httputil"
	"github.com/platinummonkey/spkrepo/pkg/models"
)

// download handles GET /download/{build_id}?arch=&build=
//
// The client is redirected to the build file and the download is recorded
// in the background. arch is the architecture code the client runs on and
// build its firmware build number.
func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	buildID, ok := httputil.ParsePathInt64OrError(w, r, "build_id")
	if !ok {
		return
	}
	archCode := r.URL.Query().Get("arch")
	if !httputil.RequireNonEmpty(w, archCode, "arch") {
		return
	}
	firmwareBuild, err := httputil.ParseQueryInt(r, "build", 0)
	if err != nil || firmwareBuild < 0 {
		httputil.WriteBadRequest(w, "invalid firmware build")
		return
	}
	if s.links == nil {
		httputil.WriteStatus(w, http.StatusNotFound)
		return
	}

	sess, ok := s.acquire(w, r)
	if !ok {
		return
	}
	defer sess.Close()

	build, err := sess.GetBuild(r.Context(), buildID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !build.IsActive() {
		httputil.WriteStatus(w, http.StatusNotFound)
		return
	}

	archs, err := sess.BuildArchitectures(r.Context(), buildID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var arch *models.Architecture
	for i := range archs {
		if archs[i].Code == archCode {
			arch = &archs[i]
			break
		}
	}
	if arch == nil {
		httputil.WriteStatus(w, http.StatusNotFound)
		return
	}

	link, err := s.links.BuildURL(r.Context(), build.Path)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	now := time.Now().UTC()
	event := models.Download{
		BuildID:        build.ID,
		ArchitectureID: arch.ID,
		FirmwareBuild:  int64(firmwareBuild),
		IPAddress:      s.cfg.TrustedProxies.ClientIP(r),
		Date:           &now,
	}
	if ua := r.UserAgent(); ua != "" {
		event.UserAgent = &ua
	}
	s.recordDownload(r, arch.Code, event)

	http.Redirect(w, r, link, http.StatusFound)
}

// recordDownload queues event for insertion. A full queue drops the event
// rather than delaying the redirect.
func (s *Server) recordDownload(r *http.Request, archCode string, event models.Download) {
	if s.metrics != nil {
		s.metrics.DownloadsTotal.WithLabelValues(archCode).Inc()
	}
	if s.otel != nil {
		s.otel.RecordDownload(r.Context(), archCode)
	}

	err := s.downloads.TrySubmit(func(ctx context.Context) error {
		_, err := s.store.Session().CreateDownload(ctx, event)
		return err
	})
	if s.metrics != nil {
		s.metrics.DownloadQueueDepth.Set(float64(s.downloads.Pending()))
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.DownloadsDroppedTotal.Inc()
		}
		s.logger.WithFields(logrus.Fields{
			"build_id": event.BuildID,
			"error":    err,
		}).Warn("download event dropped")
	}
}

// listDownloads handles GET /download
func (s *Server) listDownloads(w http.ResponseWriter, r *http.Request) {
	page, ok := parsePageOrError(w, r)
	if !ok {
		return
	}
	sess, ok := s.acquire(w, r)
	if !ok {
		return
	}
	defer sess.Close()

	downloads, err := sess.ListDownloads(r.Context(), page)
	s.respond(w, r, downloads, err)
}
