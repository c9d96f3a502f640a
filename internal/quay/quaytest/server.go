// Package quaytest provides an in-memory Quay management API for tests.
package quaytest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/mux"
)

const ownersTeam = "owners"

type organization struct {
	repos      map[string][]string
	robots     map[string]string
	proxyCache map[string]interface{}
	teams      map[string][]string
	apps       []map[string]string
}

// Server is a fake registry. Handlers keep state in memory and record every
// request so tests can assert on the calls made.
type Server struct {
	*httptest.Server

	// Token, when set, must be sent as bearer token on authenticated calls
	Token string
	// Username owns personal robots and new organizations
	Username string
	// Password, when set, is accepted with Username as basic auth in
	// place of the token
	Password string
	// PageSize, when set, splits repository and tag listings into pages
	PageSize int

	router *mux.Router

	mu          sync.Mutex
	orgs        map[string]*organization
	userRobots  map[string]string
	users       map[string]bool
	initialized bool
	requests    []string
	failures    map[string]int
	nextID      int
}

// NewServer starts a fake registry. Close it when done.
func NewServer() *Server {
	s := &Server{
		Username:   "admin",
		router:     mux.NewRouter(),
		orgs:       map[string]*organization{},
		userRobots: map[string]string{},
		users:      map[string]bool{},
		failures:   map[string]int{},
	}
	s.routes()
	s.Server = httptest.NewServer(s)
	return s
}

// routes sets up the API routes
func (s *Server) routes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/user/initialize", s.initializeUser).Methods("POST")
	api.HandleFunc("/superuser/organizations/", s.listOrganizations).Methods("GET")
	api.HandleFunc("/superuser/users/", s.listUsers).Methods("GET")

	api.HandleFunc("/organization/", s.createOrganization).Methods("POST")
	api.HandleFunc("/organization/{org}", s.getOrganization).Methods("GET")
	api.HandleFunc("/organization/{org}", s.deleteOrganization).Methods("DELETE")

	api.HandleFunc("/repository", s.listRepositories).Methods("GET")
	api.HandleFunc("/repository/{org}/{repo}/tag/", s.listTags).Methods("GET")

	api.HandleFunc("/organization/{org}/robots", s.listRobots).Methods("GET")
	api.HandleFunc("/organization/{org}/robots/{name}", s.robot).Methods("GET", "PUT", "DELETE")
	api.HandleFunc("/user/robots", s.listRobots).Methods("GET")
	api.HandleFunc("/user/robots/{name}", s.robot).Methods("GET", "PUT", "DELETE")

	api.HandleFunc("/organization/{org}/proxycache", s.proxyCache).Methods("GET", "POST", "DELETE")

	api.HandleFunc("/organization/{org}/team/{team}/members", s.listMembers).Methods("GET")
	api.HandleFunc("/organization/{org}/team/{team}/members/{member}", s.addMember).Methods("PUT")

	api.HandleFunc("/organization/{org}/applications", s.applications).Methods("GET", "POST")
}

// ServeHTTP records the request, applies injected failures and
// authentication, then routes it
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path

	s.mu.Lock()
	s.requests = append(s.requests, key)
	status, fail := s.failures[key]
	s.mu.Unlock()

	if fail {
		writeError(w, status, "injected failure")
		return
	}
	if s.Token != "" && r.URL.Path != "/api/v1/user/initialize" && !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	s.router.ServeHTTP(w, r)
}

func (s *Server) authorized(r *http.Request) bool {
	if r.Header.Get("Authorization") == "Bearer "+s.Token {
		return true
	}
	user, pass, ok := r.BasicAuth()
	return ok && s.Password != "" && user == s.Username && pass == s.Password
}

// Fail makes every request matching method and path answer with status
func (s *Server) Fail(method, path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = status
}

// Requests returns the recorded "METHOD path" lines
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// Count returns how many recorded requests used method on a path starting
// with prefix
func (s *Server) Count(method, prefix string) int {
	n := 0
	for _, r := range s.Requests() {
		m, path, _ := strings.Cut(r, " ")
		if m == method && strings.HasPrefix(path, prefix) {
			n++
		}
	}
	return n
}

// Reset forgets the recorded requests
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

// AddOrganization creates an organization whose owners team holds Username
func (s *Server) AddOrganization(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addOrganization(name)
}

func (s *Server) addOrganization(name string) *organization {
	if org, ok := s.orgs[name]; ok {
		return org
	}
	org := &organization{
		repos:  map[string][]string{},
		robots: map[string]string{},
		teams:  map[string][]string{ownersTeam: {s.Username}},
	}
	s.orgs[name] = org
	return org
}

// AddRepository adds a repository with tags, creating the organization
func (s *Server) AddRepository(org, repo string, tags ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.addOrganization(org)
	o.repos[repo] = append(o.repos[repo], tags...)
}

// AddUser registers a user
func (s *Server) AddUser(name string, superUser bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[name] = superUser
}

// AddRobot adds a robot with its short name to org, or to Username when org
// is empty
func (s *Server) AddRobot(org, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if org == "" {
		s.userRobots[name] = ""
		return
	}
	s.addOrganization(org).robots[name] = ""
}

// SetProxyCache configures a proxy cache on org
func (s *Server) SetProxyCache(org, upstream string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addOrganization(org).proxyCache = map[string]interface{}{"upstream_registry": upstream}
}

// AddApplication registers an OAuth application on org
func (s *Server) AddApplication(org, name, clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.addOrganization(org)
	o.apps = append(o.apps, map[string]string{"name": name, "client_id": clientID})
}

// Organizations returns the sorted organization names
func (s *Server) Organizations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.orgs)
}

// ProxyCache returns the proxy cache of org, or nil
func (s *Server) ProxyCache(org string) map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orgs[org]; ok {
		return o.proxyCache
	}
	return nil
}

// TeamMembers returns the members of a team
func (s *Server) TeamMembers(org, team string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orgs[org]; ok {
		return append([]string(nil), o.teams[team]...)
	}
	return nil
}

// Robots returns the composite names of the robots of org, or of Username
// when org is empty
func (s *Server) Robots(org string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.robotNames(org)
}

func (s *Server) robotNames(org string) []string {
	owner, robots := s.Username, s.userRobots
	if org != "" {
		o, ok := s.orgs[org]
		if !ok {
			return nil
		}
		owner, robots = org, o.robots
	}
	names := make([]string, 0, len(robots))
	for _, short := range sortedKeys(robots) {
		names = append(names, owner+"+"+short)
	}
	return names
}

func (s *Server) initializeUser(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		writeError(w, http.StatusBadRequest, "Cannot initialize user in a non-empty database")
		return
	}
	s.initialized = true
	s.users[in.Username] = true
	writeJSON(w, http.StatusOK, map[string]string{
		"username":     in.Username,
		"email":        in.Email,
		"access_token": "init-" + in.Username,
	})
}

func (s *Server) listOrganizations(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	orgs := []map[string]string{}
	for _, name := range sortedKeys(s.orgs) {
		orgs = append(orgs, map[string]string{"name": name})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"organizations": orgs})
}

func (s *Server) listUsers(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := []map[string]interface{}{}
	for _, name := range sortedKeys(s.users) {
		users = append(users, map[string]interface{}{"username": name, "super_user": s.users[name]})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

func (s *Server) createOrganization(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Name == "" {
		writeError(w, http.StatusBadRequest, "missing organization name")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgs[in.Name]; ok {
		writeError(w, http.StatusBadRequest, "A user or organization with this name already exists")
		return
	}
	s.addOrganization(in.Name)
	writeJSON(w, http.StatusCreated, "Created")
}

func (s *Server) getOrganization(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["org"]
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgs[name]; !ok {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": name})
}

func (s *Server) deleteOrganization(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["org"]
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgs[name]; !ok {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	delete(s.orgs, name)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listRepositories(w http.ResponseWriter, r *http.Request) {
	namespace := r.URL.Query().Get("namespace")
	s.mu.Lock()
	defer s.mu.Unlock()

	repos := []map[string]string{}
	if o, ok := s.orgs[namespace]; ok {
		for _, name := range sortedKeys(o.repos) {
			repos = append(repos, map[string]string{"namespace": namespace, "name": name})
		}
	}

	start, _ := strconv.Atoi(r.URL.Query().Get("next_page"))
	page, next := paginate(len(repos), start, s.PageSize)
	out := map[string]interface{}{"repositories": repos[page[0]:page[1]]}
	if next > 0 {
		out["next_page"] = strconv.Itoa(next)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listTags(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orgs[vars["org"]]
	if !ok {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	names, ok := o.repos[vars["repo"]]
	if !ok {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	tags := []map[string]string{}
	for _, name := range names {
		tags = append(tags, map[string]string{"name": name})
	}

	pageNum, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if pageNum < 1 {
		pageNum = 1
	}
	start := 0
	if s.PageSize > 0 {
		start = (pageNum - 1) * s.PageSize
	}
	page, next := paginate(len(tags), start, s.PageSize)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tags":           tags[page[0]:page[1]],
		"page":           pageNum,
		"has_additional": next > 0,
	})
}

// robotsOf returns the owner prefix and robot set addressed by the route
func (s *Server) robotsOf(r *http.Request) (string, map[string]string, bool) {
	org, isOrg := mux.Vars(r)["org"]
	if !isOrg {
		return s.Username, s.userRobots, true
	}
	o, ok := s.orgs[org]
	if !ok {
		return "", nil, false
	}
	return org, o.robots, true
}

func (s *Server) listRobots(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner, robots, ok := s.robotsOf(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	out := []map[string]string{}
	for _, short := range sortedKeys(robots) {
		out = append(out, map[string]string{"name": owner + "+" + short, "description": robots[short]})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"robots": out})
}

func (s *Server) robot(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	s.mu.Lock()
	defer s.mu.Unlock()
	owner, robots, ok := s.robotsOf(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		desc, exists := robots[name]
		if !exists {
			writeError(w, http.StatusNotFound, "Could not find robot with specified username")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"name": owner + "+" + name, "description": desc})
	case http.MethodPut:
		if _, exists := robots[name]; exists {
			writeError(w, http.StatusBadRequest, "Existing robot with name: "+owner+"+"+name)
			return
		}
		var in struct {
			Description string `json:"description"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		robots[name] = in.Description
		s.nextID++
		writeJSON(w, http.StatusCreated, map[string]string{
			"name":        owner + "+" + name,
			"description": in.Description,
			"token":       fmt.Sprintf("robot-token-%d", s.nextID),
		})
	case http.MethodDelete:
		delete(robots, name)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) proxyCache(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["org"]
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orgs[name]
	if !ok {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		if o.proxyCache == nil {
			writeJSON(w, http.StatusOK, map[string]interface{}{"upstream_registry": nil})
			return
		}
		writeJSON(w, http.StatusOK, o.proxyCache)
	case http.MethodPost:
		if o.proxyCache != nil {
			writeError(w, http.StatusBadRequest, "Proxy Cache already exists")
			return
		}
		var in map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		o.proxyCache = in
		writeJSON(w, http.StatusCreated, "Created")
	case http.MethodDelete:
		if o.proxyCache == nil {
			writeError(w, http.StatusNotFound, "Proxy Cache does not exist")
			return
		}
		o.proxyCache = nil
		writeJSON(w, http.StatusCreated, "Deleted")
	}
}

func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orgs[vars["org"]]
	if !ok {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	members, ok := o.teams[vars["team"]]
	if !ok {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	out := []map[string]string{}
	for _, m := range members {
		out = append(out, map[string]string{"name": m, "kind": "user"})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"name": vars["team"], "members": out})
}

func (s *Server) addMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orgs[vars["org"]]
	if !ok {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	member := vars["member"]
	for _, m := range o.teams[vars["team"]] {
		if m == member {
			writeJSON(w, http.StatusOK, map[string]string{"name": member, "kind": "user"})
			return
		}
	}
	o.teams[vars["team"]] = append(o.teams[vars["team"]], member)
	writeJSON(w, http.StatusOK, map[string]string{"name": member, "kind": "user"})
}

func (s *Server) applications(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["org"]
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orgs[name]
	if !ok {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}

	if r.Method == http.MethodGet {
		apps := append([]map[string]string{}, o.apps...)
		writeJSON(w, http.StatusOK, map[string]interface{}{"applications": apps})
		return
	}

	var in struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Name == "" {
		writeError(w, http.StatusBadRequest, "missing application name")
		return
	}
	s.nextID++
	app := map[string]string{
		"name":        in.Name,
		"description": in.Description,
		"client_id":   fmt.Sprintf("CLIENT%04d", s.nextID),
	}
	o.apps = append(o.apps, app)
	writeJSON(w, http.StatusOK, app)
}

// paginate returns the [start, end) window and the start of the next page,
// zero when there is none
func paginate(total, start, size int) ([2]int, int) {
	if start > total {
		start = total
	}
	if size <= 0 || start+size >= total {
		return [2]int{start, total}, 0
	}
	return [2]int{start, start + size}, start + size
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]interface{}{"status": status, "detail": detail, "error_message": detail})
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
