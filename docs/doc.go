// Package docs provides generated OpenAPI documentation.
//
// Memoir API
//
//	@title			Memoir API
//	@version		1.0
//	@description	Generates social posts, images and videos from memoir chapters and tracks dispatch history.
//
//	@contact.name	API Support
//	@contact.url	https://github.com/jackzampolin/memoir
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http
package docs

//go:generate swag init -g ../cmd/memoir/serve.go -o ./swagger --parseDependency --parseInternal
