// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package parser

// goQuery captures top-level Go definitions by kind. Go doc comments
// are not attached to captures here: like the AST-walking parser this
// package replaces, leading-comment extraction is left to a later pass.
const goQuery = `
(function_declaration
  name: (identifier) @name_function) @def_function

(method_declaration
  name: (field_identifier) @name_method) @def_method

(type_declaration
  (type_spec
    name: (type_identifier) @name_class
    type: (struct_type))) @def_class

(type_declaration
  (type_spec
    name: (type_identifier) @name_interface
    type: (interface_type))) @def_interface

(type_declaration
  (type_spec
    name: (type_identifier) @name_type_alias
    type: [(qualified_type) (pointer_type) (array_type) (slice_type) (map_type) (function_type) (type_identifier) (generic_type)])) @def_type_alias

(const_declaration
  (const_spec
    name: (identifier) @name_constant)) @def_constant

(var_declaration
  (var_spec
    name: (identifier) @name_variable)) @def_variable

(import_spec path: (interpreted_string_literal) @import)
`
