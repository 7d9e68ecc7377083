// SPDX-License-Identifier: Apache-2.0

package domain

import "errors"

var ErrFeatureNotFound = errors.New("feature not found")
var ErrProjectNotFound = errors.New("project not found")
var ErrInvalidFeatureUpdate = errors.New("invalid feature update")
var ErrInvalidProjectName = errors.New("invalid project name")
var ErrInvalidAPIKeyName = errors.New("invalid api key name")
var ErrInvalidWebhookURL = errors.New("invalid webhook_url")
