// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package testing provides shared in-memory CozoDB setup and
// atlas_*-schema seeding helpers for Atlas's own test suites.
//
// # Quick Start
//
//	func TestMyFeature(t *testing.T) {
//	    s := testing.SetupTestStore(t)
//	    testing.InsertTestRepository(t, s, model.Repository{ID: 1, Slug: "r"})
//	    testing.InsertTestFile(t, s, 10, 1, "auth.go", "go")
//	    testing.InsertTestDefinition(t, s, 100, 10, "HandleAuth", model.KindFunction, 1, 20)
//	}
//
// SetupTestBackend returns the lower-level *storage.EmbeddedBackend for
// tests that exercise the backend directly rather than through Store.
package testing
