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

package web

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	greengrids "github.com/HMNS19/greengrids"
)

// A StatusEvent reports the progress of a dispersion run to websocket
// subscribers.
type StatusEvent struct {
	// Type is "simulation", "convergence", or "done".
	Type string `json:"type"`

	// Text is a human-readable description of the event.
	Text string `json:"text"`

	Iteration     int     `json:"iteration,omitempty"`
	SystemTotal   float64 `json:"system_total,omitempty"`
	MaxDifference float64 `json:"max_difference,omitempty"`
	Converged     bool    `json:"converged,omitempty"`
}

func simulationEvent(msg *greengrids.SimulationStatus) StatusEvent {
	return StatusEvent{
		Type:        "simulation",
		Text:        msg.String(),
		Iteration:   msg.Iteration,
		SystemTotal: msg.SystemTotal,
	}
}

func convergenceEvent(st greengrids.ConvergenceStatus) StatusEvent {
	return StatusEvent{
		Type:          "convergence",
		Text:          st.String(),
		Iteration:     st.Iteration,
		MaxDifference: st.MaxDifference,
		Converged:     st.Converged,
	}
}

// statusHub fans StatusEvents out to the connected websocket clients.
type statusHub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

func newStatusHub() *statusHub {
	return &statusHub{conns: make(map[*websocket.Conn]bool)}
}

func (h *statusHub) add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = true
}

func (h *statusHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
}

// broadcast sends e to every connected client, dropping clients whose
// writes fail.
func (h *statusHub) broadcast(e StatusEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(e); err != nil {
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

// The dashboard may be served from a different origin during
// development, so cross-origin upgrades are allowed.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// status upgrades the connection to a websocket and streams
// StatusEvents until the client disconnects.
func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.WithError(err).Error("greengrids web upgrading status connection")
		return
	}
	// Subscribers hold the connection open indefinitely.
	conn.SetReadDeadline(time.Time{})
	s.hub.add(conn)
	defer func() {
		s.hub.remove(conn)
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// runDispersion runs a dispersion simulation on ds, forwarding
// progress to the websocket subscribers.
func (s *Server) runDispersion(ds *greengrids.Dataset, year string, steps int, wind *greengrids.Wind) error {
	cLog := make(chan *greengrids.SimulationStatus)
	cConverge := make(chan greengrids.ConvergenceStatus)
	done := make(chan struct{})
	go func(lc chan *greengrids.SimulationStatus, cc chan greengrids.ConvergenceStatus) {
		defer close(done)
		for lc != nil || cc != nil {
			select {
			case msg, ok := <-lc:
				if !ok {
					lc = nil
					continue
				}
				s.hub.broadcast(simulationEvent(msg))
			case st, ok := <-cc:
				if !ok {
					cc = nil
					continue
				}
				s.hub.broadcast(convergenceEvent(st))
			}
		}
	}(cLog, cConverge)

	m := greengrids.DefaultSimulation(ds, year, steps, wind, nil, cLog, cConverge)
	err := m.Init()
	if err == nil {
		err = m.Run()
	}
	if err == nil {
		err = m.Cleanup()
	}
	close(cLog)
	close(cConverge)
	<-done
	if err != nil {
		return err
	}
	s.hub.broadcast(StatusEvent{
		Type: "done",
		Text: fmt.Sprintf("dispersion run for %s finished", year),
	})
	return nil
}
