// Package services defines the error taxonomy and request-scoped context
// annotations shared by the external collaborator clients (generator,
// media, publisher). Subpackages hold the concrete HTTP clients.
package services
