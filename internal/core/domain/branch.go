package domain

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ClassFeeMapping assigns a fee-structure template and timings to a class
// offered at a branch.
type ClassFeeMapping struct {
	ClassName        string `json:"class_name" validate:"required"`
	FeeStructureName string `json:"fee_structure_name" validate:"required"`
	StartTime        string `json:"start_time,omitempty"`
	EndTime          string `json:"end_time,omitempty"`
}

// CCTVConfig describes one HLS stream exposed to parents through signed URLs.
type CCTVConfig struct {
	StreamID       string `json:"stream_id" validate:"required"`
	Name           string `json:"name" validate:"required"`
	HLSPlaylistURL string `json:"hls_playlist_url" validate:"required,url"`
	TokenSecret    string `json:"token_secret" validate:"required"`
	Enabled        bool   `json:"enabled"`
}

type Branch struct {
	ID                 string            `json:"id"`
	Name               string            `json:"name"`
	Code               string            `json:"code"`
	Classes            []string          `json:"classes"`
	ClassFeeStructures []ClassFeeMapping `json:"class_fee_structures"`
	GoogleLocation     string            `json:"google_location,omitempty"`
	Address            string            `json:"address,omitempty"`
	City               string            `json:"city,omitempty"`
	State              string            `json:"state,omitempty"`
	Pincode            string            `json:"pincode,omitempty"`
	Phone              string            `json:"phone,omitempty"`
	CoordinatorID      string            `json:"coordinator_id,omitempty"`
	IsActive           bool              `json:"is_active"`
	CCTVConfigs        []CCTVConfig      `json:"cctv_configs"`
}

// Stream finds a stream config by id.
func (b *Branch) Stream(streamID string) (*CCTVConfig, bool) {
	for i := range b.CCTVConfigs {
		if b.CCTVConfigs[i].StreamID == streamID {
			return &b.CCTVConfigs[i], true
		}
	}
	return nil, false
}

// ClassMapping returns the fee and timing mapping for a class, defaulting
// timings to 09:00-13:00.
func (b *Branch) ClassMapping(className string) (ClassFeeMapping, bool) {
	for _, m := range b.ClassFeeStructures {
		if m.ClassName == className {
			if m.StartTime == "" {
				m.StartTime = "09:00"
			}
			if m.EndTime == "" {
				m.EndTime = "13:00"
			}
			return m, true
		}
	}
	return ClassFeeMapping{}, false
}

// SignStreamURL returns the playlist URL with an HMAC-SHA256 token over
// "stream_id:student_id:expiry".
func SignStreamURL(cfg CCTVConfig, studentID string, expiresAt time.Time) string {
	expiry := strconv.FormatInt(expiresAt.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(cfg.TokenSecret))
	mac.Write([]byte(cfg.StreamID + ":" + studentID + ":" + expiry))
	params := url.Values{}
	params.Set("token", hex.EncodeToString(mac.Sum(nil)))
	params.Set("expires", expiry)
	params.Set("student_id", studentID)
	return strings.TrimRight(cfg.HLSPlaylistURL, "/") + "?" + params.Encode()
}

// ClockWindow is a daily HH:MM window, e.g. school hours.
type ClockWindow struct {
	Start string
	End   string
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid time %q (HH:MM)", ErrValidation, s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Contains reports whether t's wall clock falls inside the window, bounds
// inclusive.
func (w ClockWindow) Contains(t time.Time) (bool, error) {
	start, err := parseClock(w.Start)
	if err != nil {
		return false, err
	}
	end, err := parseClock(w.End)
	if err != nil {
		return false, err
	}
	now := t.Hour()*60 + t.Minute()
	return now >= start && now <= end, nil
}
