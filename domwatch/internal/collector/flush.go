package collector

import (
	"context"

	"github.com/hazyhaar/cvwatch/domwatch/mutation"
)

// flushJob is an artifact taken out of a session, exported outside the
// collector lock.
type flushJob struct {
	tabID    string
	name     string
	artifact mutation.Artifact
}

// detach builds the artifact of s as it is being replaced. The end time is
// the moment of detection. Caller holds c.mu.
func (c *Collector) detach(s *Session) *flushJob {
	c.flushes++
	return &flushJob{
		tabID:    s.TabID,
		name:     mutation.ArtifactName(s.URL, s.FileName, c.cfg.Suffix),
		artifact: mutation.NewArtifact(s.URL, s.Events, c.stamp(s)),
	}
}

// flush exports j. Failures are logged and never reach the caller.
func (c *Collector) flush(ctx context.Context, j *flushJob) {
	if j == nil {
		return
	}
	if c.cfg.Exporter == nil {
		c.logger.Warn("collector: no exporter, artifact dropped", "name", j.name)
		return
	}
	if err := c.cfg.Exporter.Export(ctx, j.name, j.artifact); err != nil {
		c.logger.Error("collector: export failed", "tab", j.tabID, "name", j.name, "error", err)
		return
	}
	c.logger.Info("collector: artifact exported", "tab", j.tabID, "name", j.name,
		"events", len(j.artifact.DOMMutation))
}
