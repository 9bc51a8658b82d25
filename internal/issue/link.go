package issue

import (
	"path"
	"strings"
)

const projectPrefix = "projects/"

// ProjectID returns the short id of a project resource name:
// "projects/sample" → "sample". Names without the prefix are returned as is.
func ProjectID(project string) string {
	id := strings.TrimPrefix(project, projectPrefix)
	if i := strings.IndexByte(id, '/'); i >= 0 {
		id = id[:i]
	}
	return id
}

// IssueNumber returns the final path segment of an issue name:
// "projects/sample/issues/123" → "123".
func IssueNumber(issueName string) string {
	return path.Base(strings.TrimRight(issueName, "/"))
}

// IssueLink builds the console URL of an issue.
func IssueLink(host, project, issueName string) string {
	return strings.TrimRight(host, "/") + "/projects/" + ProjectID(project) + "/issues/" + IssueNumber(issueName)
}
