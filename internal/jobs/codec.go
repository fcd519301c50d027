package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/kmrl/dochub/constants"
)

// row is the column form of a Job shared by the SQL backends.
type row struct {
	id, filename, status, timestamp string
	summary, keyPoints, suggestion  *string
}

func toRow(j Job) (row, error) {
	r := row{
		id:        j.ID,
		filename:  j.Filename,
		status:    string(j.Status),
		timestamp: j.Timestamp,
		summary:   j.Summary,
	}
	if j.KeyPoints != nil {
		b, err := json.Marshal(j.KeyPoints)
		if err != nil {
			return row{}, fmt.Errorf("encode key points: %w", err)
		}
		s := string(b)
		r.keyPoints = &s
	}
	if j.DepartmentSuggestion != nil {
		b, err := json.Marshal(j.DepartmentSuggestion)
		if err != nil {
			return row{}, fmt.Errorf("encode department suggestion: %w", err)
		}
		s := string(b)
		r.suggestion = &s
	}
	return r, nil
}

func (r row) job() (Job, error) {
	j := Job{
		ID:        r.id,
		Filename:  r.filename,
		Status:    constants.JobStatus(r.status),
		Timestamp: r.timestamp,
		Summary:   r.summary,
	}
	if r.keyPoints != nil {
		if err := json.Unmarshal([]byte(*r.keyPoints), &j.KeyPoints); err != nil {
			return Job{}, fmt.Errorf("decode key points of %s: %w", r.id, err)
		}
	}
	if r.suggestion != nil {
		var d DepartmentSuggestion
		if err := json.Unmarshal([]byte(*r.suggestion), &d); err != nil {
			return Job{}, fmt.Errorf("decode department suggestion of %s: %w", r.id, err)
		}
		j.DepartmentSuggestion = &d
	}
	return j, nil
}
