package tile

import (
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"tilepipe/geo"
)

// one in-flight retry inside the loader; longer-horizon retries are the
// orchestrator's job via the per-tile backoff policy
const (
	fetchAttempts   = 2
	fetchRetryDelay = 100 * time.Millisecond
)

//Result one completed download
type Result struct {
	Coord geo.TileCoord
	Data  []byte
}

//Loader fire-and-forget tile fetcher. One shared http client across all
//downloads; exactly one Result is delivered per successful Start, failed
//downloads are logged and dropped.
type Loader struct {
	client  *http.Client
	agent   string
	results chan Result
}

//NewLoader capacity bounds the completion pipe, not the concurrency
func NewLoader(opts Options) *Loader {
	return &Loader{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		agent:   opts.UserAgent,
		results: make(chan Result, 256),
	}
}

//Results the completion channel
func (l *Loader) Results() <-chan Result {
	return l.results
}

//Start launches a download without blocking the caller
func (l *Loader) Start(src Source, coord geo.TileCoord) {
	go func() {
		data, err := l.fetch(src.URL(coord))
		if err != nil {
			log.Errorf("fetch tile %v from %s error ~ %s", coord, src.Name(), err)
			return
		}
		l.results <- Result{Coord: coord, Data: data}
	}()
}

//Fetch synchronous download with the same client and attempt policy,
//for batch tools that manage their own workers
func (l *Loader) Fetch(src Source, coord geo.TileCoord) ([]byte, error) {
	return l.fetch(src.URL(coord))
}

func (l *Loader) fetch(url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < fetchAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(fetchRetryDelay)
		}
		data, err := l.fetchOnce(url)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (l *Loader) fetchOnce(url string) ([]byte, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", l.agent)
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status code: %d", resp.StatusCode)
	}
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("zero byte tile")
	}
	return body, nil
}

//Drain collects every completion already delivered, never blocking
func (l *Loader) Drain() []Result {
	var out []Result
	for {
		select {
		case r := <-l.results:
			out = append(out, r)
		default:
			return out
		}
	}
}
