/*
Package gql is the query language front end: lexer, AST, and a
recursive-descent parser for the GQL statement dialect the executors
consume.

The parser covers DDL (schemas, graphs, graph types, users, roles,
indexes), DML (INSERT, SET, REMOVE, DELETE, and their MATCH-prefixed
forms), MATCH/RETURN with WHERE, ORDER BY, and LIMIT, transaction control,
SESSION SET, and CALL with YIELD/WHERE. Keywords match case-insensitively;
statement classification (kind, read-only) hangs off the parsed statement.
*/
package gql
