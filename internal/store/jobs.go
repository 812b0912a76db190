package store

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/mmcdole/kinotv/internal/domain"
)

// JobRecord is the last state the job facility reported for a job
type JobRecord struct {
	State     domain.JobState `json:"state"`
	RunID     string          `json:"run_id,omitempty"`
	UpdatedAt int64           `json:"updated_at"`
}

// Time returns UpdatedAt as a time.Time.
func (r JobRecord) Time() time.Time {
	return time.Unix(r.UpdatedAt, 0)
}

// JobLedger persists the latest state of each named job.
type JobLedger struct {
	db *DB
}

func NewJobLedger(db *DB) *JobLedger {
	return &JobLedger{db: db}
}

func (l *JobLedger) Record(name string, rec JobRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return l.db.putAll(bucketJobs, map[string][]byte{name: data})
}

func (l *JobLedger) Last(name string) (JobRecord, bool) {
	var rec JobRecord
	data, err := l.db.get(bucketJobs, name)
	if err != nil || data == nil {
		return rec, false
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, false
	}
	return rec, true
}

func (l *JobLedger) Forget(name string) error {
	return l.db.delete(bucketJobs, name)
}
