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

// typescriptQuery extends the JavaScript capture set with interfaces
// and type aliases, TypeScript's own definition kinds.
const typescriptQuery = `
(function_declaration
  name: (identifier) @name_function) @def_function

(method_definition
  name: (property_identifier) @name_method) @def_method

(variable_declarator
  name: (identifier) @name_function
  value: [(arrow_function) (function_expression)]) @def_function

(class_declaration
  name: (type_identifier) @name_class) @def_class

(interface_declaration
  name: (type_identifier) @name_interface) @def_interface

(type_alias_declaration
  name: (type_identifier) @name_type_alias) @def_type_alias

(enum_declaration
  name: (identifier) @name_enum) @def_enum

(import_statement
  source: (string) @import)
`
