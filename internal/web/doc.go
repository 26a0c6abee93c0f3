// Package web serves the registration API over HTTP.
//
// Submissions always answer 200 with a JSON status object when the
// registration reached a verdict, including rejections, so the frontend
// can show the status string as is. 400 means the request itself was
// malformed and 500 means the catalog failed.
package web
