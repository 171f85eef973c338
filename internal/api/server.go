// Package api exposes the linkwatch REST surface: interface LLDP
// administration, liveness administration and status, loop records,
// polling cadence, and the discovery ingest endpoint.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nettrail/linkwatch/internal/event"
	"github.com/nettrail/linkwatch/internal/liveness"
	"github.com/nettrail/linkwatch/internal/loop"
	"github.com/nettrail/linkwatch/internal/store"
	"github.com/nettrail/linkwatch/internal/topology"
)

// PollingController exposes the runtime-adjustable discovery cadence.
// The daemon's poller implements it.
type PollingController interface {
	Interval() time.Duration
	SetInterval(d time.Duration) error
}

// Publisher abstracts the outbound event channel.
type Publisher interface {
	Publish(ev event.Event)
}

// Server is the REST handler set.
type Server struct {
	registry *topology.Registry
	live     *liveness.Manager
	loops    *loop.Manager
	st       *store.Store
	pub      Publisher
	polling  PollingController
	logger   *slog.Logger
}

// New creates the REST server.
func New(
	registry *topology.Registry,
	live *liveness.Manager,
	loops *loop.Manager,
	st *store.Store,
	pub Publisher,
	polling PollingController,
	logger *slog.Logger,
) *Server {
	return &Server{
		registry: registry,
		live:     live,
		loops:    loops,
		st:       st,
		pub:      pub,
		polling:  polling,
		logger:   logger.With(slog.String("component", "api")),
	}
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/interfaces", s.handleListInterfaces)
		r.Post("/interfaces/enable", s.handleEnableLLDP)
		r.Post("/interfaces/disable", s.handleDisableLLDP)

		r.Get("/liveness", s.handleListPairs)
		r.Get("/liveness/interfaces/{interfaceID}", s.handleInterfaceStatus)
		r.Post("/liveness/enable", s.handleEnableLiveness)
		r.Post("/liveness/disable", s.handleDisableLiveness)

		r.Get("/loops", s.handleListLoops)

		r.Get("/polling-time", s.handleGetPollingTime)
		r.Post("/polling-time", s.handleSetPollingTime)

		r.Post("/discovery", s.handleDiscovery)

		r.Post("/topology/switches", s.handleUpsertSwitch)
		r.Delete("/topology/switches/{dpid}", s.handleDeleteSwitch)
		r.Put("/topology/switches/{dpid}/metadata", s.handleSwitchMetadata)
		r.Delete("/topology/interfaces/{interfaceID}", s.handleDeleteInterface)
	})

	return r
}

// -------------------------------------------------------------------------
// Wire Types
// -------------------------------------------------------------------------

type interfaceView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	DPID       string `json:"dpid"`
	PortNumber int    `json:"port_number"`
	LLDP       bool   `json:"lldp"`
	Active     bool   `json:"active"`
	Enabled    bool   `json:"enabled"`
	Liveness   string `json:"liveness,omitempty"`
}

type interfacesRequest struct {
	Interfaces []string `json:"interfaces"`
}

type endpointView struct {
	ID          string     `json:"id"`
	State       string     `json:"state"`
	LastHelloAt *time.Time `json:"last_hello_at,omitempty"`
}

type pairView struct {
	A     endpointView `json:"interface_a"`
	B     endpointView `json:"interface_b"`
	State string       `json:"state"`
}

type loopView struct {
	DPID        string     `json:"dpid"`
	PortNumbers [2]int     `json:"port_numbers"`
	State       string     `json:"state"`
	DetectedAt  time.Time  `json:"detected_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StoppedAt   *time.Time `json:"stopped_at,omitempty"`
}

type pollingTimeView struct {
	PollingTime string `json:"polling_time"`
}

type discoveryRequest struct {
	InterfaceA string `json:"interface_a"`
	InterfaceB string `json:"interface_b"`
}

type errorResponse struct {
	Error    string   `json:"error"`
	NotFound []string `json:"not_found,omitempty"`
}

// -------------------------------------------------------------------------
// Interface LLDP Administration
// -------------------------------------------------------------------------

func (s *Server) handleListInterfaces(w http.ResponseWriter, r *http.Request) {
	interfaces := s.registry.Interfaces()

	views := make([]interfaceView, 0, len(interfaces))
	for _, intf := range interfaces {
		v := interfaceView{
			ID:         intf.ID(),
			Name:       intf.Name(),
			DPID:       intf.Switch().DPID(),
			PortNumber: intf.PortNumber(),
			LLDP:       intf.LLDP(),
			Active:     intf.Active(),
			Enabled:    intf.Enabled(),
		}
		if st, ok := s.live.InterfaceStatus(intf.ID()); ok {
			v.Liveness = st.State.String()
		}
		views = append(views, v)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })

	s.writeJSON(w, http.StatusOK, map[string]any{"interfaces": views})
}

func (s *Server) handleEnableLLDP(w http.ResponseWriter, r *http.Request) {
	interfaces, done := s.resolveInterfaces(w, r)
	if done {
		return
	}

	ids := make([]string, 0, len(interfaces))
	for _, intf := range interfaces {
		intf.SetLLDP(true)
		ids = append(ids, intf.ID())
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"enabled": ids})
}

// handleDisableLLDP turns LLDP off for the given interfaces. Liveness
// tracking rides on the hellos and cannot outlive LLDP, so the
// interfaces are also withdrawn from the liveness engine and the
// persisted liveness enablement is cleared.
func (s *Server) handleDisableLLDP(w http.ResponseWriter, r *http.Request) {
	interfaces, done := s.resolveInterfaces(w, r)
	if done {
		return
	}

	ids := make([]string, 0, len(interfaces))
	for _, intf := range interfaces {
		intf.SetLLDP(false)
		ids = append(ids, intf.ID())
	}

	if err := s.st.DisableInterfaces(r.Context(), ids); err != nil {
		s.logger.Error("failed to persist liveness disablement",
			slog.String("error", err.Error()),
		)
		s.writeJSON(w, http.StatusInternalServerError,
			errorResponse{Error: "failed to persist disablement"})
		return
	}

	s.live.Disable(interfaces...)
	s.pub.Publish(event.Event{
		Name:    event.LivenessDisabled,
		Content: event.LivenessAdmin{Interfaces: interfaces},
	})

	s.writeJSON(w, http.StatusOK, map[string]any{"disabled": ids})
}

// -------------------------------------------------------------------------
// Liveness Administration and Status
// -------------------------------------------------------------------------

func (s *Server) handleListPairs(w http.ResponseWriter, r *http.Request) {
	statuses := s.live.PairStatuses()

	views := make([]pairView, 0, len(statuses))
	for _, st := range statuses {
		views = append(views, pairView{
			A:     endpointView{ID: st.A.ID, State: st.A.State.String(), LastHelloAt: timePtr(st.A.LastHelloAt)},
			B:     endpointView{ID: st.B.ID, State: st.B.State.String(), LastHelloAt: timePtr(st.B.LastHelloAt)},
			State: st.State.String(),
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].A.ID < views[j].A.ID })

	s.writeJSON(w, http.StatusOK, map[string]any{"pairs": views})
}

func (s *Server) handleInterfaceStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "interfaceID")

	st, ok := s.live.InterfaceStatus(id)
	if !ok {
		s.writeJSON(w, http.StatusNotFound,
			errorResponse{Error: "interface not enabled for liveness", NotFound: []string{id}})
		return
	}

	s.writeJSON(w, http.StatusOK, endpointView{
		ID:          id,
		State:       st.State.String(),
		LastHelloAt: timePtr(st.LastHelloAt),
	})
}

// handleEnableLiveness enables liveness tracking. Liveness rides on the
// LLDP hellos, so every requested interface must already have LLDP
// enabled.
func (s *Server) handleEnableLiveness(w http.ResponseWriter, r *http.Request) {
	interfaces, done := s.resolveInterfaces(w, r)
	if done {
		return
	}

	var lldpDisabled []string
	for _, intf := range interfaces {
		if !intf.LLDP() {
			lldpDisabled = append(lldpDisabled, intf.ID())
		}
	}
	if len(lldpDisabled) > 0 {
		s.writeJSON(w, http.StatusConflict, errorResponse{
			Error:    "lldp is disabled on requested interfaces",
			NotFound: lldpDisabled,
		})
		return
	}

	if err := s.st.EnableInterfaces(r.Context(), interfaceIDs(interfaces)); err != nil {
		s.logger.Error("failed to persist liveness enablement",
			slog.String("error", err.Error()),
		)
		s.writeJSON(w, http.StatusInternalServerError,
			errorResponse{Error: "failed to persist enablement"})
		return
	}

	s.live.Enable(interfaces...)
	s.pub.Publish(event.Event{
		Name:    event.LivenessEnabled,
		Content: event.LivenessAdmin{Interfaces: interfaces},
	})

	s.writeJSON(w, http.StatusOK, map[string]any{"enabled": interfaceIDs(interfaces)})
}

func (s *Server) handleDisableLiveness(w http.ResponseWriter, r *http.Request) {
	interfaces, done := s.resolveInterfaces(w, r)
	if done {
		return
	}

	if err := s.st.DisableInterfaces(r.Context(), interfaceIDs(interfaces)); err != nil {
		s.logger.Error("failed to persist liveness disablement",
			slog.String("error", err.Error()),
		)
		s.writeJSON(w, http.StatusInternalServerError,
			errorResponse{Error: "failed to persist disablement"})
		return
	}

	s.live.Disable(interfaces...)
	s.pub.Publish(event.Event{
		Name:    event.LivenessDisabled,
		Content: event.LivenessAdmin{Interfaces: interfaces},
	})

	s.writeJSON(w, http.StatusOK, map[string]any{"disabled": interfaceIDs(interfaces)})
}

// -------------------------------------------------------------------------
// Loop Records
// -------------------------------------------------------------------------

func (s *Server) handleListLoops(w http.ResponseWriter, r *http.Request) {
	records := s.loops.Records()

	views := make([]loopView, 0, len(records))
	for _, rec := range records {
		views = append(views, loopView{
			DPID:        rec.DPID,
			PortNumbers: rec.PortNumbers,
			State:       rec.State.String(),
			DetectedAt:  rec.DetectedAt,
			UpdatedAt:   rec.UpdatedAt,
			StoppedAt:   timePtr(rec.StoppedAt),
		})
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].DPID != views[j].DPID {
			return views[i].DPID < views[j].DPID
		}
		return views[i].PortNumbers[0] < views[j].PortNumbers[0]
	})

	s.writeJSON(w, http.StatusOK, map[string]any{"loops": views})
}

// -------------------------------------------------------------------------
// Polling Cadence
// -------------------------------------------------------------------------

func (s *Server) handleGetPollingTime(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, pollingTimeView{
		PollingTime: s.polling.Interval().String(),
	})
}

func (s *Server) handleSetPollingTime(w http.ResponseWriter, r *http.Request) {
	var req pollingTimeView
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	d, err := time.ParseDuration(req.PollingTime)
	if err != nil || d <= 0 {
		s.writeJSON(w, http.StatusBadRequest,
			errorResponse{Error: "polling_time must be a positive duration"})
		return
	}

	if err := s.polling.SetInterval(d); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	s.logger.Info("polling time updated", slog.Duration("polling_time", d))
	s.writeJSON(w, http.StatusOK, pollingTimeView{PollingTime: d.String()})
}

// -------------------------------------------------------------------------
// Discovery Ingest
// -------------------------------------------------------------------------

// handleDiscovery accepts a neighbor observation (two interface IDs that
// saw each other's hello) and publishes it onto the bus. The dispatch
// loop feeds it to the liveness and loop engines.
func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	var req discoveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.InterfaceA == "" || req.InterfaceB == "" {
		s.writeJSON(w, http.StatusBadRequest,
			errorResponse{Error: "interface_a and interface_b are required"})
		return
	}

	var notFound []string
	intfA, okA := s.registry.InterfaceByID(req.InterfaceA)
	if !okA {
		notFound = append(notFound, req.InterfaceA)
	}
	intfB, okB := s.registry.InterfaceByID(req.InterfaceB)
	if !okB {
		notFound = append(notFound, req.InterfaceB)
	}
	if len(notFound) > 0 {
		s.writeJSON(w, http.StatusNotFound,
			errorResponse{Error: "unknown interfaces", NotFound: notFound})
		return
	}

	s.pub.Publish(event.Event{
		Name:    event.NeighborDiscovered,
		Content: event.Neighbor{InterfaceA: intfA, InterfaceB: intfB},
	})

	w.WriteHeader(http.StatusAccepted)
}

// -------------------------------------------------------------------------
// Topology Ingest
// -------------------------------------------------------------------------

type switchRequest struct {
	DPID       string             `json:"dpid"`
	Connected  *bool              `json:"connected,omitempty"`
	Metadata   map[string]any     `json:"metadata,omitempty"`
	Interfaces []interfaceRequest `json:"interfaces"`
}

type interfaceRequest struct {
	PortNumber int    `json:"port_number"`
	Name       string `json:"name"`
	LLDP       *bool  `json:"lldp,omitempty"`
	Active     *bool  `json:"active,omitempty"`
	Enabled    *bool  `json:"enabled,omitempty"`
}

// handleUpsertSwitch mirrors a switch from the external topology into the
// registry. Interfaces whose IDs are flagged enabled in the store resume
// liveness tracking, which is the bootstrap path after a daemon restart.
func (s *Server) handleUpsertSwitch(w http.ResponseWriter, r *http.Request) {
	var req switchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.DPID == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "dpid is required"})
		return
	}

	sw, ok := s.registry.Switch(req.DPID)
	if !ok {
		sw = topology.NewSwitch(req.DPID)
		s.registry.AddSwitch(sw)
	}
	if req.Connected != nil {
		sw.SetConnected(*req.Connected)
	}
	if len(req.Metadata) > 0 {
		sw.ExtendMetadata(req.Metadata)
	}

	var resumed []string
	for _, ir := range req.Interfaces {
		intf, ok := sw.Interface(ir.PortNumber)
		if !ok {
			intf = topology.NewInterface(sw, ir.PortNumber, ir.Name)
			sw.AddInterface(intf)
		}
		if ir.LLDP != nil {
			intf.SetLLDP(*ir.LLDP)
		}
		if ir.Active != nil {
			intf.SetActive(*ir.Active)
		}
		if ir.Enabled != nil {
			intf.SetEnabled(*ir.Enabled)
		}

		enabled, known, err := s.st.IsEnabled(r.Context(), intf.ID())
		if err != nil {
			s.logger.Error("failed to read stored enablement",
				slog.String("interface_id", intf.ID()),
				slog.String("error", err.Error()),
			)
			continue
		}
		if known && enabled && intf.LLDP() {
			s.live.Enable(intf)
			resumed = append(resumed, intf.ID())
		}
	}

	// Pick up any per-switch loop ignore list carried in the metadata.
	s.loops.TryToLoadIgnoredSwitch(sw)

	if len(resumed) > 0 {
		s.logger.Info("resumed liveness tracking from store",
			slog.String("dpid", req.DPID),
			slog.Int("interfaces", len(resumed)),
		)
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"dpid":             req.DPID,
		"liveness_resumed": resumed,
	})
}

// handleDeleteSwitch drops a switch the external topology no longer
// reports. Liveness tracking stops and the stored enablement rows for
// its interfaces are deleted.
func (s *Server) handleDeleteSwitch(w http.ResponseWriter, r *http.Request) {
	dpid := chi.URLParam(r, "dpid")

	sw, ok := s.registry.Switch(dpid)
	if !ok {
		s.writeJSON(w, http.StatusNotFound,
			errorResponse{Error: "unknown switch", NotFound: []string{dpid}})
		return
	}

	interfaces := sw.Interfaces()
	s.live.Disable(interfaces...)
	if err := s.st.DeleteInterfaces(r.Context(), interfaceIDs(interfaces)); err != nil {
		s.logger.Error("failed to delete stored enablement",
			slog.String("dpid", dpid),
			slog.String("error", err.Error()),
		)
	}
	s.registry.RemoveSwitch(dpid)

	s.writeJSON(w, http.StatusOK, map[string]any{"deleted": dpid})
}

// handleSwitchMetadata replaces switch metadata keys and reloads the
// loop ignore list from the result.
func (s *Server) handleSwitchMetadata(w http.ResponseWriter, r *http.Request) {
	dpid := chi.URLParam(r, "dpid")

	sw, ok := s.registry.Switch(dpid)
	if !ok {
		s.writeJSON(w, http.StatusNotFound,
			errorResponse{Error: "unknown switch", NotFound: []string{dpid}})
		return
	}

	var md map[string]any
	if err := json.NewDecoder(r.Body).Decode(&md); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	for key, v := range md {
		if v == nil {
			sw.RemoveMetadata(key)
			continue
		}
		sw.ExtendMetadata(map[string]any{key: v})
	}

	s.loops.HandleSwitchMetadataChanged(sw)

	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteInterface drops one interface the external topology no
// longer reports.
func (s *Server) handleDeleteInterface(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "interfaceID")

	intf, ok := s.registry.InterfaceByID(id)
	if !ok {
		s.writeJSON(w, http.StatusNotFound,
			errorResponse{Error: "unknown interfaces", NotFound: []string{id}})
		return
	}

	s.live.Disable(intf)
	if err := s.st.DeleteInterfaces(r.Context(), []string{id}); err != nil {
		s.logger.Error("failed to delete stored enablement",
			slog.String("interface_id", id),
			slog.String("error", err.Error()),
		)
	}
	intf.Switch().RemoveInterface(intf.PortNumber())

	s.writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// -------------------------------------------------------------------------
// Helpers
// -------------------------------------------------------------------------

// resolveInterfaces decodes an interface-list request and resolves every
// ID against the registry. On any failure it writes the error response
// and reports done=true.
func (s *Server) resolveInterfaces(w http.ResponseWriter, r *http.Request) (interfaces []*topology.Interface, done bool) {
	var req interfacesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return nil, true
	}
	if len(req.Interfaces) == 0 {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "interfaces list is empty"})
		return nil, true
	}

	var notFound []string
	for _, id := range req.Interfaces {
		intf, ok := s.registry.InterfaceByID(id)
		if !ok {
			notFound = append(notFound, id)
			continue
		}
		interfaces = append(interfaces, intf)
	}
	if len(notFound) > 0 {
		s.writeJSON(w, http.StatusNotFound,
			errorResponse{Error: "unknown interfaces", NotFound: notFound})
		return nil, true
	}

	return interfaces, false
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response",
			slog.String("error", err.Error()),
		)
	}
}

func interfaceIDs(interfaces []*topology.Interface) []string {
	ids := make([]string, 0, len(interfaces))
	for _, intf := range interfaces {
		ids = append(ids, intf.ID())
	}
	return ids
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
