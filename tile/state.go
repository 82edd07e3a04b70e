package tile

import (
	"time"

	"tilepipe/geo"
)

//State per-tile lifecycle: not-requested -> loading -> loaded|error.
//Stale data is kept across errors so the last good image stays on screen.
type State struct {
	Coord         geo.TileCoord
	Data          []byte
	Loading       bool
	Err           error
	Current       bool
	Retain        bool
	Opacity       float64
	LoadedTime    time.Time
	RetryCount    int
	LastRetryTime time.Time
	ParentData    []byte
	ShowParent    bool
}

//NewState a fresh not-requested tile
func NewState(coord geo.TileCoord) *State {
	return &State{Coord: coord}
}

//IsLoaded true once own data arrived
func (s *State) IsLoaded() bool {
	return s.Data != nil
}

//HasDisplayData true when either own or borrowed parent data can be drawn
func (s *State) HasDisplayData() bool {
	return s.Data != nil || (s.ShowParent && s.ParentData != nil)
}

//DisplayData own data wins over parent data
func (s *State) DisplayData() []byte {
	if s.Data != nil {
		return s.Data
	}
	if s.ShowParent {
		return s.ParentData
	}
	return nil
}

//MarkLoading flags an in-flight request
func (s *State) MarkLoading() {
	s.Loading = true
}

//MarkLoaded stores data, clears the error and resets the retry counter
func (s *State) MarkLoaded(data []byte) {
	s.Data = data
	s.Loading = false
	s.Err = nil
	s.RetryCount = 0
	s.LoadedTime = time.Now()
}

//MarkError records a failed load; previously loaded data stays
func (s *State) MarkError(err error) {
	s.Err = err
	s.Loading = false
	s.RetryCount++
	s.LastRetryTime = time.Now()
}

//SetParentData borrows a covering ancestor's data while own data is absent
func (s *State) SetParentData(data []byte) {
	s.ShowParent = data != nil && s.Data == nil
	s.ParentData = data
}

//ShouldRetry backoff gate: retries remain and the required delay since the
//last failure has elapsed. With exponential backoff the delay doubles per
//failed attempt.
func (s *State) ShouldRetry(maxRetries int, retryDelay time.Duration, exponential bool) bool {
	if s.RetryCount >= maxRetries {
		return false
	}
	if s.LastRetryTime.IsZero() {
		return true
	}
	required := retryDelay
	if exponential {
		required = retryDelay * time.Duration(int64(1)<<uint(s.RetryCount))
	}
	return time.Since(s.LastRetryTime) >= required
}
