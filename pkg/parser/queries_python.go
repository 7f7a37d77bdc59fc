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

// pythonQuery captures functions, classes, module-level assignments,
// and imports. A function/method's docstring, when present, is the
// first statement in its body and is captured directly.
const pythonQuery = `
(function_definition
  name: (identifier) @name_function
  body: (block . (expression_statement (string) @doc))) @def_function

(function_definition
  name: (identifier) @name_function) @def_function

(class_definition
  name: (identifier) @name_class
  body: (block . (expression_statement (string) @doc))) @def_class

(class_definition
  name: (identifier) @name_class) @def_class

(expression_statement
  (assignment
    left: (identifier) @name_variable)) @def_variable

(import_statement
  name: (dotted_name) @import)

(import_from_statement
  module_name: (dotted_name) @import)
`
