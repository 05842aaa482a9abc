/*
Copyright © 2026 the GreenGrids authors.
This file is part of GreenGrids.

GreenGrids is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

GreenGrids is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with GreenGrids.  If not, see <http://www.gnu.org/licenses/>.*/

// Package aqhist fetches historical air-quality observations for the
// survey areas from the OpenWeather air pollution history API and
// reduces them to yearly averages. Fetches are retried with
// exponential backoff, cached by area and year, and spaced out to
// respect the free-tier rate limit.
package aqhist

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/HMNS19/greengrids/internal/hash"
	"github.com/cenkalti/backoff"
	"github.com/ctessum/requestcache"
	"github.com/sirupsen/logrus"
)

func init() {
	gob.Register(&YearAverage{})
}

// DefaultURL is the upstream air pollution history endpoint.
const DefaultURL = "https://api.openweathermap.org/data/2.5/air_pollution/history"

// defaultStartYear is when upstream air pollution history coverage
// realistically begins.
const defaultStartYear = 2020

// Area is one named survey location.
type Area struct {
	Name      string
	Latitude  float64
	Longitude float64
}

// YearAverage holds the yearly means of the upstream hourly
// observations for one area. Samples counts the observations behind
// the averages; a zero means upstream had no data for the year.
type YearAverage struct {
	Area      string
	Year      int
	Latitude  float64
	Longitude float64

	AQI  float64
	PM25 float64
	PM10 float64
	NO2  float64
	O3   float64
	CO   float64

	Samples int
}

// Client fetches yearly air-quality averages. The API key must be
// supplied by the caller; there is no default.
type Client struct {
	// URL is the history endpoint to query.
	URL string

	// Key is the OpenWeather API key.
	Key string

	// StartYear and EndYear bound the fetched years, inclusive. Zero
	// values mean 2020 through the current UTC year.
	StartYear, EndYear int

	// Delay is the pause enforced between upstream calls. The free
	// tier throttles aggressively, so the default is one second.
	Delay time.Duration

	// Retries is how many times a failed call is retried before
	// giving up. Values below one are treated as one.
	Retries int

	// CacheDir, if nonempty, persists fetched years to disk.
	CacheDir string

	Log logrus.FieldLogger

	cacheOnce sync.Once
	cache     *requestcache.Cache

	mu   sync.Mutex
	last time.Time
}

// Fetched years kept in the in-memory cache.
const cachedYears = 1000

// NewClient returns a Client with the standard settings for the given
// API key.
func NewClient(key string) *Client {
	return &Client{
		URL:       DefaultURL,
		Key:       key,
		StartYear: defaultStartYear,
		EndYear:   time.Now().UTC().Year(),
		Delay:     time.Second,
		Retries:   5,
		Log:       logrus.StandardLogger(),
	}
}

type yearRequest struct {
	Area Area
	Year int
}

// History fetches the yearly averages for every area over the client's
// year range, in area order then year order. Years upstream has no
// observations for are skipped. Previously fetched years are served
// from the cache without touching the network.
func (c *Client) History(ctx context.Context, areas []Area) ([]*YearAverage, error) {
	if c.Key == "" {
		return nil, fmt.Errorf("aqhist: missing API key")
	}
	c.cacheOnce.Do(func() {
		if c.CacheDir == "" {
			c.cache = requestcache.NewCache(c.fetch, runtime.GOMAXPROCS(-1),
				requestcache.Deduplicate(), requestcache.Memory(cachedYears))
		} else {
			c.cache = requestcache.NewCache(c.fetch, runtime.GOMAXPROCS(-1),
				requestcache.Deduplicate(), requestcache.Memory(cachedYears),
				requestcache.Disk(c.CacheDir, requestcache.MarshalGob, requestcache.UnmarshalGob))
		}
	})

	first, last := c.years()
	var out []*YearAverage
	for _, area := range areas {
		c.Log.WithFields(logrus.Fields{
			"area":  area.Name,
			"first": first,
			"last":  last,
		}).Info("greengrids fetching air quality history")
		for year := first; year <= last; year++ {
			r := yearRequest{Area: area, Year: year}
			req := c.cache.NewRequest(ctx, r, hash.Key("aqhist", r))
			resultI, err := req.Result()
			if err != nil {
				return nil, err
			}
			avg := resultI.(*YearAverage)
			if avg.Samples == 0 {
				continue
			}
			out = append(out, avg)
		}
	}
	return out, nil
}

func (c *Client) years() (first, last int) {
	first, last = c.StartYear, c.EndYear
	if first == 0 {
		first = defaultStartYear
	}
	if last == 0 {
		last = time.Now().UTC().Year()
	}
	return first, last
}

// throttle blocks until at least the configured delay has passed since
// the previous upstream call.
func (c *Client) throttle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.last.IsZero() {
		if d := c.Delay - time.Since(c.last); d > 0 {
			time.Sleep(d)
		}
	}
	c.last = time.Now()
}

type observation struct {
	Main struct {
		AQI float64 `json:"aqi"`
	} `json:"main"`
	Components struct {
		PM25 float64 `json:"pm2_5"`
		PM10 float64 `json:"pm10"`
		NO2  float64 `json:"no2"`
		O3   float64 `json:"o3"`
		CO   float64 `json:"co"`
	} `json:"components"`
}

type historyResponse struct {
	List []observation `json:"list"`
}

// fetch retrieves and averages one area-year of hourly observations.
func (c *Client) fetch(ctx context.Context, request interface{}) (interface{}, error) {
	r := request.(yearRequest)

	start := time.Date(r.Year, time.January, 1, 0, 0, 0, 0, time.UTC).Unix()
	end := time.Date(r.Year, time.December, 31, 0, 0, 0, 0, time.UTC).Unix()
	v := url.Values{}
	v.Set("lat", strconv.FormatFloat(r.Area.Latitude, 'g', -1, 64))
	v.Set("lon", strconv.FormatFloat(r.Area.Longitude, 'g', -1, 64))
	v.Set("start", strconv.FormatInt(start, 10))
	v.Set("end", strconv.FormatInt(end, 10))
	v.Set("appid", c.Key)
	u := c.URL + "?" + v.Encode()

	retries := c.Retries
	if retries < 1 {
		retries = 1
	}
	var hr historyResponse
	err := backoff.RetryNotify(
		func() error {
			c.throttle()
			httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
			if err != nil {
				return backoff.Permanent(err)
			}
			resp, err := http.DefaultClient.Do(httpReq)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				// Bad request or bad key; retrying cannot help.
				return backoff.Permanent(fmt.Errorf("aqhist: fetching %s %d: %s",
					r.Area.Name, r.Year, resp.Status))
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("aqhist: fetching %s %d: %s", r.Area.Name, r.Year, resp.Status)
			}
			hr = historyResponse{}
			return json.NewDecoder(resp.Body).Decode(&hr)
		},
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(retries)),
		func(err error, d time.Duration) {
			c.Log.Warnf("%v: retrying in %v", err, d)
		},
	)
	if err != nil {
		return nil, err
	}

	avg := &YearAverage{
		Area:      r.Area.Name,
		Year:      r.Year,
		Latitude:  r.Area.Latitude,
		Longitude: r.Area.Longitude,
		Samples:   len(hr.List),
	}
	if len(hr.List) == 0 {
		return avg, nil
	}
	for _, o := range hr.List {
		avg.AQI += o.Main.AQI
		avg.PM25 += o.Components.PM25
		avg.PM10 += o.Components.PM10
		avg.NO2 += o.Components.NO2
		avg.O3 += o.Components.O3
		avg.CO += o.Components.CO
	}
	n := float64(len(hr.List))
	avg.AQI = round2(avg.AQI / n)
	avg.PM25 = round2(avg.PM25 / n)
	avg.PM10 = round2(avg.PM10 / n)
	avg.NO2 = round2(avg.NO2 / n)
	avg.O3 = round2(avg.O3 / n)
	avg.CO = round2(avg.CO / n)
	return avg, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
