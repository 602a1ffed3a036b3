package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageCrawlStart Stage = "CRAWL_START"
	StagePageOK     Stage = "PAGE_OK"
	StagePageFailed Stage = "PAGE_FAILED"
	StageCrawlDone  Stage = "CRAWL_DONE"
	StageCrawlError Stage = "CRAWL_ERROR"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported HTTP status classes tracked for page outcomes.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusOther StatusClass = "other"
)

// Event captures a single step of crawl progress.
type Event struct {
	// CrawlID identifies the crawl using the 16-byte UUID form.
	CrawlID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle or page milestone occurred.
	Stage Stage
	// Strategy is the crawl strategy name; set on lifecycle events.
	Strategy string
	// Site scopes page events to a host label.
	Site string
	// URL is the page URL for page events.
	URL string
	// Depth is the discovery depth of the page.
	Depth int
	// StatusClass groups the document status of a page.
	StatusClass StatusClass
	// Fonts counts raw font values on a page, or distinct families on CRAWL_DONE.
	Fonts int
	// Pages counts pages visited successfully; set on CRAWL_DONE.
	Pages int
	// Dur captures page fetch or whole crawl latency.
	Dur time.Duration
	// Note carries low-volume debug context such as error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.CrawlID == [16]byte{} {
		return errors.New("crawl id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageCrawlStart, StageCrawlDone, StageCrawlError:
	case StagePageOK, StagePageFailed:
		if e.URL == "" {
			return errors.New("page event requires url")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// lifecycle reports whether e marks the start or end of a crawl.
func (e Event) lifecycle() bool {
	return e.Stage == StageCrawlStart || e.terminal()
}

func (e Event) terminal() bool {
	return e.Stage == StageCrawlDone || e.Stage == StageCrawlError
}

// CrawlUUID converts the binary crawl ID to uuid.UUID.
func (e Event) CrawlUUID() uuid.UUID {
	return uuid.UUID(e.CrawlID)
}

// ParseCrawlID decodes a textual crawl id into the Event form. Invalid ids
// yield the zero value, which Validate rejects.
func ParseCrawlID(id string) [16]byte {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return [16]byte{}
	}
	return UUIDToBytes(parsed)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// ClassifyStatus groups HTTP status codes for page events.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
