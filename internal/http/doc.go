// Package http provides the JSON API and middleware of the room booking service.
//
// The router exposes the following endpoints:
//   - POST /api/sessions: issues a session token. Body: {"email","password"}. Response:
//     {"token","expires_at","user"} with the token also surfaced via the
//     `X-Session-Token` header and a `session_token` cookie.
//   - DELETE /api/sessions/current: revokes the token carried by the Authorization
//     header or session cookie. Returns 204 No Content and clears the cookie.
//   - POST /api/sessions/current/refresh: rotates the caller's token and returns
//     {"token","expires_at"}.
//   - GET /api/rooms, POST /api/rooms, GET/PUT /api/rooms/{ref}: room catalog, where
//     ref is a room id or slug. Reading is open to any authenticated principal;
//     changes require staff.
//   - GET /api/events?start&end&room and GET /api/admin/events?start&end&room&user:
//     calendar feeds of expanded reservations and fixed classes. Event ids are
//     `r-<id>` for reservations and `sc-<id>` for classes.
//   - GET /api/availability?date&room_slug&duration_min: free 30 minute starts.
//   - POST /api/reservations and POST /api/reservations/{id}/cancel with body
//     {"mode":"all"|"single","date"}.
//   - POST /api/admin/cancel-bulk with body {"ids":[...]}.
//   - GET/POST /api/admin/classes, PUT/DELETE /api/admin/classes/{id} and
//     POST /api/admin/classes/{id}/toggle: the fixed weekly grid.
//   - GET/POST /api/admin/users: accounts and their profiles.
//   - GET/PATCH /api/me: the caller's account; PATCH body {"phone"}.
//   - GET /ws: websocket stream of booking change events.
//
// Conflicts answer 409 with a `conflicts` array carrying, per weekday, the
// alternatives offered instead. Request/response DTOs live alongside their
// handlers.
package http
