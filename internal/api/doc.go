// Package api hosts the HTTP server, middleware, and REST handlers for the
// magazine CMS. Notable routes:
//   - GET /api/articles, /api/articles/latest and /api/articles/{id}, the last
//     answering social crawlers with an Open Graph preview document.
//   - POST/PUT/DELETE /api/articles for authenticated editors, with image upload.
//   - GET/POST /api/categories.
//   - POST /api/auth/login and /api/admin/login, delegated to the identity provider.
//   - GET /api/health, /metrics and /uploads/* for operations.
package api
