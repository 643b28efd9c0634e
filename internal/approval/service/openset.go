package service

import "seeddid/internal/approval/models"

// OpenSet is the snapshot produced by one scan. It belongs to the caller that
// ran the scan and is not safe for concurrent use.
//
// Request ids are message ids and only unique within a conversation, so
// entries are keyed by conversation and request id together.
type OpenSet struct {
	order []models.RequestKey
	byKey map[models.RequestKey]models.OpenRequest
}

func newOpenSet() *OpenSet {
	return &OpenSet{byKey: make(map[models.RequestKey]models.OpenRequest)}
}

// add keeps the first request seen for a key.
func (s *OpenSet) add(req models.OpenRequest) {
	key := req.Key()
	if _, ok := s.byKey[key]; ok {
		return
	}
	s.order = append(s.order, key)
	s.byKey[key] = req
}

// List returns the open requests in conversation order, then message order.
func (s *OpenSet) List() []models.OpenRequest {
	out := make([]models.OpenRequest, 0, len(s.byKey))
	for _, key := range s.order {
		if req, ok := s.byKey[key]; ok {
			out = append(out, req)
		}
	}
	return out
}

func (s *OpenSet) Get(key models.RequestKey) (models.OpenRequest, bool) {
	req, ok := s.byKey[key]
	return req, ok
}

// Retire removes a request. Retirement is final for this snapshot.
func (s *OpenSet) Retire(key models.RequestKey) bool {
	if _, ok := s.byKey[key]; !ok {
		return false
	}
	delete(s.byKey, key)
	return true
}

func (s *OpenSet) Len() int {
	return len(s.byKey)
}
