package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"closet-cast/internal/services"
)

func TestRecommendHandler_Recommend(t *testing.T) {
	tests := []struct {
		name       string
		reply      string
		replyErr   error
		seedToday  bool
		wantStatus int
		wantCode   string
		want       *services.Recommendation
	}{
		{
			name:       "outfit from the reply",
			reply:      "(COAT, HOODIE, JEANS)",
			seedToday:  true,
			wantStatus: http.StatusOK,
			wantCode:   "COMMON200",
			want:       &services.Recommendation{Outer: "COAT", Top: "HOODIE", Bottom: "JEANS"},
		},
		{
			name:       "no outer layer",
			reply:      "(None, HOODIE, JEANS)",
			seedToday:  true,
			wantStatus: http.StatusOK,
			wantCode:   "COMMON200",
			want:       &services.Recommendation{Outer: "None", Top: "HOODIE", Bottom: "JEANS"},
		},
		{
			name:       "reply with two items",
			reply:      "(HOODIE, JEANS)",
			seedToday:  true,
			wantStatus: http.StatusBadGateway,
			wantCode:   "RECOMMEND5022",
		},
		{
			name:       "completion failure",
			replyErr:   errors.New("rate limited"),
			seedToday:  true,
			wantStatus: http.StatusBadGateway,
			wantCode:   "RECOMMEND5021",
		},
		{
			name:       "no forecast for today",
			reply:      "(COAT, HOODIE, JEANS)",
			wantStatus: http.StatusNotFound,
			wantCode:   "WEATHER4001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			s.completer.reply = tt.reply
			s.completer.err = tt.replyErr

			member, token := s.signUp(t, "dresser")
			clothes := []string{"COAT", "HOODIE", "JEANS"}
			if _, err := s.members.Update(context.Background(), member.ID, services.UpdateInput{Clothes: clothes}); err != nil {
				t.Fatalf("Update() error = %v", err)
			}
			if tt.seedToday {
				s.seedDay(t, s.weather.Today(), 4, 9, 13)
			}

			rec := s.do(t, http.MethodGet, fmt.Sprintf("/api/recommend/%d", member.ID), token, nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}

			var got services.Recommendation
			env := decodeEnvelope(t, rec, &got)
			if env.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", env.Code, tt.wantCode)
			}
			if tt.want != nil && got != *tt.want {
				t.Errorf("recommendation = %+v, want %+v", got, *tt.want)
			}
		})
	}
}

func TestRecommendHandler_RequiresToken(t *testing.T) {
	s := newTestServer(t)
	member, _ := s.signUp(t, "anon")

	rec := s.do(t, http.MethodGet, fmt.Sprintf("/api/recommend/%d", member.ID), "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
