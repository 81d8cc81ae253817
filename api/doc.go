// Package api holds the request and response bodies of the StemChat HTTP API.
//
// # Endpoints
//
// Public:
//   - POST /api/signup, POST /api/login
//   - GET /health, /healthz, /ready, /version
//
// Bearer token (Authorization header, or ?token= for the WebSocket):
//   - GET/POST/DELETE /api/messages, PUT/DELETE /api/messages/{id}
//   - GET /ws
//   - GET/POST /api/inventory, GET /api/inventory/low-stock
//   - PUT /api/inventory/{id}, GET /api/inventory/{id}/transactions
//   - GET/POST /api/suppliers
//   - GET /api/agents
//
// Every JSON response uses the envelope
//
//	{"success": true, "data": ..., "timestamp": "...", "request_id": "..."}
//
// with "error": {"code", "message"} in place of "data" on failure.
package api
